package core

import "context"

// DocumentExtractor pulls plain text out of a document. The contentType hint
// selects the parsing strategy. Image-only or malformed documents yield empty
// text, which ingestion reports as a warning rather than a fatal error.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
