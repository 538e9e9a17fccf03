package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// job identifies one pending ingestion: either an already-registered document
// (docID set) or a corpus file that still needs a document record (path set).
type job struct {
	docID string
	path  string
}

// Pipeline turns source books into embedded rule chunks: extract text, split
// on planet-house headings, window into token-bounded chunks, embed in
// batches and upsert into the vector store.
type Pipeline struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	cfg       *Config

	jobs chan job
}

// NewPipeline constructs the pipeline with a bounded job queue (64).
func NewPipeline(db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, ext core.DocumentExtractor, cfg *Config) *Pipeline {
	return &Pipeline{
		db: db, obj: obj, embedder: emb, extractor: ext, cfg: cfg,
		jobs: make(chan job, 64),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel.
func (p *Pipeline) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Println("Pipeline: worker shutting down.")
					return
				case j := <-p.jobs:
					var (
						rep *Report
						err error
					)
					if j.docID != "" {
						log.Printf("Pipeline: worker %d processing document %s", w, j.docID)
						rep, err = p.ProcessDocument(ctx, j.docID)
					} else {
						log.Printf("Pipeline: worker %d processing file %s", w, j.path)
						rep, err = p.ProcessFile(ctx, j.path)
					}
					if err != nil {
						log.Printf("Pipeline: ingestion failed: %v", err)
						continue
					}
					for _, warn := range rep.Warnings {
						log.Printf("Pipeline: %s: %s", rep.FileName, warn)
					}
					log.Printf("Pipeline: %s done (%d chunks, %d upserted)", rep.FileName, rep.Chunks, rep.Upserted)
				}
			}
		}(w)
	}
}

// Enqueue schedules a registered document for ingestion.
// If the queue is full, this call blocks until space frees up.
func (p *Pipeline) Enqueue(docID string) {
	p.jobs <- job{docID: docID}
}

// EnqueueFile schedules a corpus file for ingestion.
func (p *Pipeline) EnqueueFile(path string) {
	p.jobs <- job{path: path}
}

// ProcessDocument ingests an already-registered document, fetching its bytes
// from object storage. Document status moves processing -> ready, or failed
// when nothing could be upserted.
func (p *Pipeline) ProcessDocument(ctx context.Context, docID string) (*Report, error) {
	// One context bounds the whole job, status updates included; a cancelled
	// worker aborts the job as a unit rather than leaving it half-tracked.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	doc, err := p.db.GetDocumentByID(ctx, docID)
	if err != nil || doc == nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}

	_ = p.db.UpdateDocumentStatus(ctx, docID, "processing")

	bucket, key := parseS3URL(doc.StorageURL)
	data, err := p.obj.GetFile(ctx, bucket, key)
	if err != nil {
		_ = p.db.UpdateDocumentStatus(ctx, docID, "failed")
		return nil, fmt.Errorf("get object: %w", err)
	}

	rep, err := p.run(ctx, doc, data)
	if err != nil {
		_ = p.db.UpdateDocumentStatus(ctx, docID, "failed")
		return nil, err
	}

	status := "ready"
	if rep.Upserted == 0 {
		status = "failed"
	}
	if err := p.db.UpdateDocumentStatus(ctx, docID, status); err != nil {
		return rep, fmt.Errorf("update status: %w", err)
	}
	return rep, nil
}

// ProcessFile ingests a file from the local corpus directory. The document ID
// is derived from the absolute path, so re-running over the same corpus reuses
// the existing document record and replaces its chunks in place.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Report, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	docID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()

	doc, err := p.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("lookup document: %w", err)
	}
	if doc == nil {
		contentType := "text/plain"
		if strings.EqualFold(filepath.Ext(abs), ".pdf") {
			contentType = "application/pdf"
		}
		doc = &models.Document{
			ID:          docID,
			FileName:    filepath.Base(abs),
			StorageURL:  "file://" + abs,
			SourceType:  "corpus",
			ContentType: contentType,
			Status:      "processing",
		}
		if err := p.db.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
	} else {
		_ = p.db.UpdateDocumentStatus(ctx, docID, "processing")
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		_ = p.db.UpdateDocumentStatus(ctx, docID, "failed")
		return nil, fmt.Errorf("read file: %w", err)
	}

	rep, err := p.run(ctx, doc, data)
	if err != nil {
		_ = p.db.UpdateDocumentStatus(ctx, docID, "failed")
		return nil, err
	}

	status := "ready"
	if rep.Upserted == 0 {
		status = "failed"
	}
	if err := p.db.UpdateDocumentStatus(ctx, docID, status); err != nil {
		return rep, fmt.Errorf("update status: %w", err)
	}
	return rep, nil
}

// run extracts, chunks, embeds and persists one document's bytes.
// Chunk-level failures (an embed batch that keeps erroring) are recorded as
// warnings so the rest of the document still lands in the store.
func (p *Pipeline) run(ctx context.Context, doc *models.Document, data []byte) (*Report, error) {
	rep := &Report{DocumentID: doc.ID, FileName: doc.FileName}

	text, err := p.extractor.ExtractText(ctx, data, doc.ContentType)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("extract text: %v", err))
		return rep, nil
	}
	if strings.TrimSpace(text) == "" {
		rep.Warnings = append(rep.Warnings, "document produced no text")
		return rep, nil
	}

	chunks := buildChunks(splitRuleSections(text), p.cfg.TargetTokens, p.cfg.OverlapTokens)
	rep.Chunks = len(chunks)
	if len(chunks) == 0 {
		rep.Warnings = append(rep.Warnings, "document produced no chunks")
		return rep, nil
	}

	g, gctx := errgroup.WithContext(ctx)

	chunkCh := make(chan chunk, 8)
	g.Go(func() error {
		defer close(chunkCh)
		for _, c := range chunks {
			select {
			case chunkCh <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		batch := make([]chunk, 0, p.cfg.BatchSize)
		for c := range chunkCh {
			batch = append(batch, c)
			if len(batch) == p.cfg.BatchSize {
				p.flushBatch(gctx, doc.ID, batch, rep)
				batch = batch[:0]
			}
		}
		p.flushBatch(gctx, doc.ID, batch, rep)
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return rep, err
	}
	return rep, nil
}

// flushBatch embeds one batch and upserts it, retrying transient failures
// with exponential backoff. A batch that exhausts its retries becomes
// per-chunk warnings on the report; later batches still run.
func (p *Pipeline) flushBatch(ctx context.Context, docID string, batch []chunk, rep *Report) {
	if len(batch) == 0 {
		return
	}

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	var vecs [][]float32
	embed := func() error {
		v, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embed size mismatch: got %d want %d", len(v), len(texts)))
		}
		vecs = v
		return nil
	}
	if err := backoff.Retry(embed, p.policy(ctx)); err != nil {
		p.warnBatch(rep, docID, batch, "embed", err)
		return
	}

	rows := make([]models.RuleChunk, len(batch))
	for i, c := range batch {
		rows[i] = models.RuleChunk{
			ID:         models.ChunkID(docID, c.Pos),
			DocumentID: docID,
			Position:   c.Pos,
			Planet:     c.Planet,
			House:      c.House,
			Heading:    c.Heading,
			Text:       c.Text,
			Embedding:  vecs[i],
			TokenCount: c.TokenCnt,
		}
	}
	upsert := func() error {
		return p.db.UpsertRuleChunks(ctx, rows)
	}
	if err := backoff.Retry(upsert, p.policy(ctx)); err != nil {
		p.warnBatch(rep, docID, batch, "upsert", err)
		return
	}

	rep.Upserted += len(batch)
}

func (p *Pipeline) policy(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxRetries)), ctx)
}

func (p *Pipeline) warnBatch(rep *Report, docID string, batch []chunk, stage string, err error) {
	for _, c := range batch {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s chunk %s: %v", stage, models.ChunkID(docID, c.Pos), err))
	}
}

// parseS3URL extracts the bucket and key from a virtual-hosted-style S3 URL.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}
