package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Rajan093/VastuAi/internal/config"
	db "github.com/Rajan093/VastuAi/internal/core/database"
	"github.com/Rajan093/VastuAi/internal/core/ingest"
	"github.com/Rajan093/VastuAi/internal/core/llm"
)

var corpusExtensions = []string{".pdf", ".txt", ".md"}

// Batch-ingests a directory of rule books into the vector store.
// Usage: ingest -dir ./corpus
func main() {
	dir := flag.String("dir", "", "directory of rule books to ingest (default: CORPUS_DIR)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()
	if *dir == "" {
		*dir = cfg.CorpusDir
	}
	if *dir == "" {
		log.Fatal("no corpus directory: pass -dir or set CORPUS_DIR")
	}

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer dbClient.Close()

	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		log.Fatalf("embedder: %v", err)
	}

	pipeline := ingest.NewPipeline(dbClient, nil, embedder, ingest.NewDocconvExtractor(false), &ingest.Config{
		TargetTokens:  cfg.ChunkTargetTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		BatchSize:     cfg.EmbedBatch,
		MaxRetries:    cfg.EmbedMaxRetries,
	})

	var files, ok, failed int
	err = filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !watchedExt(path) {
			return nil
		}
		files++

		rep, err := pipeline.ProcessFile(ctx, path)
		if err != nil {
			failed++
			log.Printf("FAIL %s: %v", path, err)
			return nil
		}
		for _, warn := range rep.Warnings {
			log.Printf("WARN %s: %s", rep.FileName, warn)
		}
		if rep.Upserted == 0 {
			failed++
			log.Printf("FAIL %s: no chunks upserted", rep.FileName)
			return nil
		}
		ok++
		log.Printf("OK   %s: %d chunks, %d upserted", rep.FileName, rep.Chunks, rep.Upserted)
		return nil
	})
	if err != nil {
		log.Fatalf("walk %s: %v", *dir, err)
	}

	log.Printf("done: %d files, %d ok, %d failed", files, ok, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func watchedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range corpusExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
