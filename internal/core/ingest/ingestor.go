package ingest

import "context"

// Ingestor is what the API layer sees of the pipeline.
type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(docID string)
	EnqueueFile(path string)
}
