package ingest

// Config tunes the ingestion pipeline.
//
// TargetTokens:  approximate tokens per chunk.
// OverlapTokens: token overlap between consecutive chunks for context bleed.
// BatchSize:     how many chunks to embed/write in one batch.
// MaxRetries:    bounded retry count for embed/upsert calls before the batch
//                is reported as failed chunks.
type Config struct {
	TargetTokens  int
	OverlapTokens int
	BatchSize     int
	MaxRetries    int
}

// chunk is the internal representation passed through the pipeline.
//
// Pos:      stable, zero-based position of the chunk inside the document;
//           together with the document ID it forms the durable chunk ID.
// Planet/House/Heading: rule metadata when the chunk came from a
//           planet-house section, zero values otherwise.
// TokenCnt: approximate token count (used for batching and overlap math).
type chunk struct {
	Pos      int
	Planet   string
	House    int
	Heading  string
	Text     string
	TokenCnt int
}

// Report summarizes one document's ingestion. Chunk-level failures land in
// Warnings instead of aborting the run.
type Report struct {
	DocumentID string
	FileName   string
	Chunks     int
	Upserted   int
	Warnings   []string
}
