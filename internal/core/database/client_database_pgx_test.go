package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Rajan093/VastuAi/internal/models"
)

// recorder captures every statement and argument the client sends,
// standing in for a live Postgres.
type recorder struct {
	queries []string
	args    [][]driver.NamedValue
}

func (r *recorder) record(query string, args []driver.NamedValue) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
}

type recConnector struct{ rec *recorder }

func (c recConnector) Connect(context.Context) (driver.Conn, error) {
	return &recConn{rec: c.rec}, nil
}
func (c recConnector) Driver() driver.Driver { return recDriver{} }

type recDriver struct{}

func (recDriver) Open(string) (driver.Conn, error) { return nil, errors.New("use the connector") }

type recConn struct{ rec *recorder }

func (c *recConn) Prepare(query string) (driver.Stmt, error) {
	return &recStmt{rec: c.rec, query: query}, nil
}
func (c *recConn) Close() error              { return nil }
func (c *recConn) Begin() (driver.Tx, error) { return recTx{}, nil }

func (c *recConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.rec.record(query, args)
	return driver.RowsAffected(1), nil
}

func (c *recConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.rec.record(query, args)
	return emptyRows{}, nil
}

type recStmt struct {
	rec   *recorder
	query string
}

func (s *recStmt) Close() error  { return nil }
func (s *recStmt) NumInput() int { return -1 }

func (s *recStmt) Exec(args []driver.Value) (driver.Result, error) {
	named := make([]driver.NamedValue, len(args))
	for i, a := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: a}
	}
	s.rec.record(s.query, named)
	return driver.RowsAffected(1), nil
}

func (s *recStmt) Query(args []driver.Value) (driver.Rows, error) { return emptyRows{}, nil }

type recTx struct{}

func (recTx) Commit() error   { return nil }
func (recTx) Rollback() error { return nil }

type emptyRows struct{}

func (emptyRows) Columns() []string              { return nil }
func (emptyRows) Close() error                   { return nil }
func (emptyRows) Next(dest []driver.Value) error { return io.EOF }

func newRecordedClient() (*DatabaseClient, *recorder) {
	rec := &recorder{}
	return &DatabaseClient{db: sql.OpenDB(recConnector{rec: rec})}, rec
}

// A zero time.Time is a valid driver.Value, so it reaches Postgres as the
// literal year-1 timestamp rather than NULL. Creation timestamps must
// therefore come from the schema defaults, never from bound parameters.
func TestWritesLeaveTimestampsToStoreDefaults(t *testing.T) {
	c, rec := newRecordedClient()
	ctx := context.Background()

	if err := c.CreateUser(ctx, &models.User{ID: "u1", Email: "a@b.test", PasswordHash: "hash"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := c.CreateDocument(ctx, &models.Document{
		ID: "d1", FileName: "lalkitab.txt", StorageURL: "file:///corpus/lalkitab.txt",
		SourceType: "corpus", ContentType: "text/plain", Status: "processing",
	}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := c.UpsertRuleChunks(ctx, []models.RuleChunk{{
		ID: models.ChunkID("d1", 0), DocumentID: "d1", Planet: "Sun", House: 1,
		Heading: "Sun in 1st House", Text: "bold native", Embedding: []float32{1, 2, 3}, TokenCount: 2,
	}}); err != nil {
		t.Fatalf("UpsertRuleChunks: %v", err)
	}
	if err := c.CreateChatSession(ctx, &models.ChatSession{ID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("CreateChatSession: %v", err)
	}
	if err := c.AppendChatTurn(ctx,
		&models.ChatMessage{ID: "m1", SessionID: "s1", Role: "user", Content: "question"},
		&models.ChatMessage{ID: "m2", SessionID: "s1", Role: "assistant", Content: "answer"},
	); err != nil {
		t.Fatalf("AppendChatTurn: %v", err)
	}

	for i, q := range rec.queries {
		if strings.Contains(q, "INSERT") && strings.Contains(q, "created_at") {
			t.Errorf("insert binds a timestamp column the schema should default: %s", q)
		}
		for _, a := range rec.args[i] {
			if ts, ok := a.Value.(time.Time); ok && ts.IsZero() {
				t.Errorf("zero time.Time sent to the store by %q", q)
			}
		}
	}
}

// Both halves of a turn are committed in one transaction and can share a
// created_at, so the history must be ordered by insertion sequence.
func TestHistoryOrderedByInsertionSequence(t *testing.T) {
	c, rec := newRecordedClient()

	if _, err := c.GetMessagesBySession(context.Background(), "s1"); err != nil {
		t.Fatalf("GetMessagesBySession: %v", err)
	}

	q := rec.queries[len(rec.queries)-1]
	if !strings.Contains(q, "ORDER BY seq ASC") {
		t.Errorf("history query does not order by insertion sequence: %s", q)
	}
	if strings.Contains(q, "ORDER BY created_at") {
		t.Errorf("history query orders by created_at, which ties within a turn: %s", q)
	}
}
