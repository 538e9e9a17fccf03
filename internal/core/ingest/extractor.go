package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/Rajan093/VastuAi/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText extracts plain text from the document bytes based on content
// type. Plain text passes through untouched so corpus .txt files skip docconv.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if strings.HasPrefix(contentType, "text/") {
		return string(data), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv (%s): %w", contentType, err)
	}
	return res.Body, nil
}
