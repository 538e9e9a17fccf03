package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Rajan093/VastuAi/internal/config"
	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedModel, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	// Timestamps are assigned by the store's DEFAULT now(); a zero time.Time
	// would otherwise reach Postgres as a literal year-1 value, not NULL.
	const q = `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, file_name, storage_url, source_type, content_type, status)
		VALUES
			($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.StorageURL, doc.SourceType, doc.ContentType, doc.Status)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, COALESCE(user_id, ''), file_name, storage_url, source_type, content_type, status, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType, &d.ContentType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	const q = `
		SELECT id, COALESCE(user_id, ''), file_name, storage_url, source_type, content_type, status, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType, &d.ContentType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// UpsertRuleChunks writes chunks in a single transaction. The deterministic
// chunk id makes re-ingestion replace rows instead of duplicating them.
func (c *DatabaseClient) UpsertRuleChunks(ctx context.Context, chunks []models.RuleChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO rule_chunks
			(id, document_id, position, planet, house, heading, text, embedding, token_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			planet = EXCLUDED.planet,
			house = EXCLUDED.house,
			heading = EXCLUDED.heading,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			token_count = EXCLUDED.token_count
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)

		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.Position, ch.Planet, ch.House, ch.Heading, ch.Text, vec, ch.TokenCount,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) CountRuleChunks(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM rule_chunks`).Scan(&n)
	return n, err
}

// SearchRuleChunks finds the top-k chunks by cosine similarity, optionally
// restricted to the chart's planet-house combinations. No local ranking is
// applied; the store's ordering is returned as-is.
func (c *DatabaseClient) SearchRuleChunks(ctx context.Context, queryVec []float32, pairs []models.PlanetHouse, limit int) ([]models.RetrievedRule, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, document_id, position, planet, house, heading, text, token_count,
		       1 - (embedding <=> $1) AS score
		FROM rule_chunks
	`)
	args := []interface{}{pgvector.NewVector(queryVec)}

	if len(pairs) > 0 {
		sb.WriteString("WHERE (planet, house) IN (")
		for i, p := range pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, p.Planet, p.House)
		}
		sb.WriteString(")\n")
	}

	fmt.Fprintf(&sb, "ORDER BY embedding <=> $1\nLIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetrievedRule
	for rows.Next() {
		var r models.RetrievedRule
		if err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Position, &r.Chunk.Planet, &r.Chunk.House,
			&r.Chunk.Heading, &r.Chunk.Text, &r.Chunk.TokenCount, &r.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRuleChunksByPairs fetches passages for exact chart combinations. Used for
// the initial reading where the whole chart, not a question, drives retrieval.
func (c *DatabaseClient) GetRuleChunksByPairs(ctx context.Context, pairs []models.PlanetHouse, perPair int) ([]models.RetrievedRule, error) {
	const q = `
		SELECT id, document_id, position, planet, house, heading, text, token_count
		FROM rule_chunks
		WHERE planet = $1 AND house = $2
		ORDER BY position ASC
		LIMIT $3
	`
	var out []models.RetrievedRule
	for _, p := range pairs {
		rows, err := c.db.QueryContext(ctx, q, p.Planet, p.House, perPair)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var r models.RetrievedRule
			if err := rows.Scan(
				&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Position, &r.Chunk.Planet, &r.Chunk.House,
				&r.Chunk.Heading, &r.Chunk.Text, &r.Chunk.TokenCount,
			); err != nil {
				rows.Close()
				return nil, err
			}
			r.Score = 1 // exact chart match
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func (c *DatabaseClient) CreateChatSession(ctx context.Context, s *models.ChatSession) error {
	if s == nil {
		return errors.New("nil session")
	}
	chartJSON, err := json.Marshal(s.Chart)
	if err != nil {
		return fmt.Errorf("marshal chart: %w", err)
	}
	const q = `
		INSERT INTO chat_sessions
			(id, user_id, birth_date, birth_time, place, latitude, longitude, timezone, utc_offset, chart)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = c.db.ExecContext(ctx, q,
		s.ID, s.UserID, s.Birth.Date, s.Birth.Time, s.Birth.Place,
		s.Birth.Latitude, s.Birth.Longitude, s.Birth.Timezone, s.Birth.UTCOffset,
		chartJSON)
	return err
}

func (c *DatabaseClient) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	const q = `
		SELECT id, user_id, birth_date, birth_time, place, latitude, longitude, timezone, utc_offset, chart, created_at
		FROM chat_sessions
		WHERE id = $1
	`
	var (
		s         models.ChatSession
		chartJSON []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.UserID, &s.Birth.Date, &s.Birth.Time, &s.Birth.Place,
		&s.Birth.Latitude, &s.Birth.Longitude, &s.Birth.Timezone, &s.Birth.UTCOffset,
		&chartJSON, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(chartJSON, &s.Chart); err != nil {
		return nil, fmt.Errorf("unmarshal chart: %w", err)
	}
	return &s, nil
}

func (c *DatabaseClient) GetMessagesBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	// Ordering is by insertion sequence, not created_at: both halves of a
	// turn land in one transaction and can share a timestamp.
	const q = `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`
	rows, err := c.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendChatTurn commits both halves of a turn in one transaction so a failed
// generation never leaves a dangling user message in the history.
func (c *DatabaseClient) AppendChatTurn(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error {
	if userMsg == nil || assistantMsg == nil {
		return errors.New("nil message")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO chat_messages (id, session_id, role, content)
		VALUES ($1, $2, $3, $4)
	`
	for _, m := range []*models.ChatMessage{userMsg, assistantMsg} {
		if _, err := tx.ExecContext(ctx, q, m.ID, m.SessionID, m.Role, m.Content); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

var _ core.DbClient = (*DatabaseClient)(nil)
