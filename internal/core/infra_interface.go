package core

import (
	"context"
	"io"

	"github.com/Rajan093/VastuAi/internal/models"
)

// DbClient defines all persistence operations the higher layers need.
// It abstracts Postgres/pgvector so nothing above depends on a specific store.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	// UpsertRuleChunks writes chunks keyed by their deterministic IDs;
	// re-running ingestion on unchanged input replaces instead of duplicating.
	UpsertRuleChunks(ctx context.Context, chunks []models.RuleChunk) error
	CountRuleChunks(ctx context.Context) (int, error)

	// SearchRuleChunks runs a similarity search, optionally restricted to the
	// given planet-house pairs. Results come back in the store's order.
	SearchRuleChunks(ctx context.Context, queryVec []float32, pairs []models.PlanetHouse, limit int) ([]models.RetrievedRule, error)
	// GetRuleChunksByPairs fetches rule passages for exact chart combinations,
	// up to perPair passages for each pair.
	GetRuleChunksByPairs(ctx context.Context, pairs []models.PlanetHouse, perPair int) ([]models.RetrievedRule, error)

	CreateChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSession(ctx context.Context, id string) (*models.ChatSession, error)
	GetMessagesBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	// AppendChatTurn commits a user message and the assistant reply atomically;
	// a failed turn leaves the history unchanged.
	AppendChatTurn(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
