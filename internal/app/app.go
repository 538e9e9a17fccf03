package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Rajan093/VastuAi/internal/astro"
	"github.com/Rajan093/VastuAi/internal/config"
	"github.com/Rajan093/VastuAi/internal/core"
	db "github.com/Rajan093/VastuAi/internal/core/database"
	"github.com/Rajan093/VastuAi/internal/core/ingest"
	"github.com/Rajan093/VastuAi/internal/core/llm"
	"github.com/Rajan093/VastuAi/internal/core/objectstore"
	"github.com/Rajan093/VastuAi/internal/generation"
	"github.com/Rajan093/VastuAi/internal/retrieval"
)

// ingestWorkers is how many pipeline goroutines drain the job queue.
const ingestWorkers = 2

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Pipeline     *ingest.Pipeline
	Watcher      *ingest.CorpusWatcher
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm: %w", err)
	}

	extractor := ingest.NewDocconvExtractor(false)

	pipeline := ingest.NewPipeline(dbClient, objClient, embedder, extractor, &ingest.Config{
		TargetTokens:  cfg.ChunkTargetTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		BatchSize:     cfg.EmbedBatch,
		MaxRetries:    cfg.EmbedMaxRetries,
	})
	pipeline.Start(ctx, ingestWorkers)

	var watcher *ingest.CorpusWatcher
	if cfg.CorpusDir != "" {
		watcher, err = ingest.NewCorpusWatcher(pipeline, nil)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the corpus watcher: %w", err)
		}
		if err := watcher.Watch(ctx, cfg.CorpusDir); err != nil {
			return nil, fmt.Errorf("watch corpus dir: %w", err)
		}
		log.Printf("Watching corpus directory %s.", cfg.CorpusDir)
	}

	geocoder, err := astro.NewGeocoder(cfg.NominatimURL)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the geocoder: %w", err)
	}

	ephemeris, err := astro.NewMeeusEphemeris()
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the ephemeris: %w", err)
	}
	calculator, err := astro.NewCalculator(ephemeris, cfg.HouseSystem)
	if err != nil {
		return nil, err
	}

	retriever := retrieval.NewService(dbClient, embedder, cfg.RetrievalTopK)
	astrologer := generation.NewClient(llmProvider)

	server := NewServer(cfg, dbClient, objClient, pipeline, geocoder, calculator, retriever, astrologer)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Pipeline:     pipeline,
		Watcher:      watcher,
		Server:       server,
	}, nil
}

func (a *App) Close() {
	if a.Watcher != nil {
		_ = a.Watcher.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
