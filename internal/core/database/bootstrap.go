package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the schema on first run and verifies that the
// configured embedding model matches the one the index was built with.
// Vectors from different embedding models are not comparable, so a mismatch
// is a startup failure rather than silently degraded retrieval.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, embedModel string, embedDim int) error {

	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'vastuai_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		return runBootstrap(ctxBoot, db, embedModel, embedDim)
	}

	var storedModel string
	err = db.QueryRowContext(ctxBoot,
		`SELECT embed_model FROM vastuai_meta WHERE version = $1`, schemaVersion).
		Scan(&storedModel)
	if err == sql.ErrNoRows {
		return runBootstrap(ctxBoot, db, embedModel, embedDim)
	}
	if err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}

	if storedModel != embedModel {
		return fmt.Errorf("index was built with embedding model %q but EMBED_MODEL is %q; re-ingest or fix the config", storedModel, embedModel)
	}
	return nil
}

func runBootstrap(ctx context.Context, db *sql.DB, embedModel string, embedDim int) error {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}
	script := strings.ReplaceAll(string(sqlBytes), "__EMBED_DIM__", strconv.Itoa(embedDim))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vastuai_meta (version, embed_model) VALUES ($1, $2)`,
		schemaVersion, embedModel); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}
