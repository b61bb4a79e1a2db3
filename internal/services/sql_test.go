package services

import (
	"context"
	"errors"
	"testing"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/store"
)

// --- Fakes ---

type fakeQueryStore struct {
	rows    []models.Record
	err     error
	calls   int
	lastQ   string
	lastVar map[string]any
}

func (f *fakeQueryStore) Query(_ context.Context, q string, vars map[string]any) ([]models.Record, error) {
	f.calls++
	f.lastQ = q
	f.lastVar = vars
	return f.rows, f.err
}

func TestSQLService_Execute(t *testing.T) {
	store := &fakeQueryStore{rows: []models.Record{{"n": 1}}}
	svc := NewSQLService(store)

	rows, err := svc.Execute(context.Background(), dto.SQLRequest{
		Query:     "  SELECT n FROM t WHERE r = :r;  ",
		Variables: map[string]any{"r": "EU"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || store.lastQ != "SELECT n FROM t WHERE r = :r;" || store.lastVar["r"] != "EU" {
		t.Fatalf("unexpected call: rows=%v q=%q vars=%v", rows, store.lastQ, store.lastVar)
	}
}

func TestSQLService_RejectsWrites(t *testing.T) {
	store := &fakeQueryStore{}
	svc := NewSQLService(store)

	for _, q := range []string{
		"",
		"DELETE FROM t",
		"insert into t values (1)",
		"SELECT 1; DROP TABLE t",
		"selector",
	} {
		_, err := svc.Execute(context.Background(), dto.SQLRequest{Query: q})
		var verr *errs.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("query %q: expected ValidationError, got %v", q, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("store called %d times", store.calls)
	}
}

func TestSQLService_AllowsReadForms(t *testing.T) {
	svc := NewSQLService(&fakeQueryStore{})
	for _, q := range []string{"with x as (select 1) select * from x", "SELECT(1)", "VALUES (1)"} {
		if _, err := svc.Execute(context.Background(), dto.SQLRequest{Query: q}); err != nil {
			t.Fatalf("query %q: unexpected error %v", q, err)
		}
	}
}

func TestSQLService_PropagatesStoreError(t *testing.T) {
	want := errs.NewDatabaseError("query", "boom", errors.New("x"))
	svc := NewSQLService(&fakeQueryStore{err: want})
	_, err := svc.Execute(context.Background(), dto.SQLRequest{Query: "SELECT 1"})
	if !errors.Is(err, want) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestSQLService_CTEWriteDoesNotModifyData(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	qs := store.NewQueryStore(db)
	defer func() { _ = qs.Close() }()
	if _, err := qs.Exec(ctx, "CREATE TABLE users (name TEXT)", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := qs.Exec(ctx, "INSERT INTO users VALUES ('ada'), ('alan')", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewSQLService(qs)
	_, err = svc.Execute(ctx, dto.SQLRequest{Query: "with x as (select 1) delete from users"})
	var derr *errs.DatabaseError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}

	rows, err := svc.Execute(ctx, dto.SQLRequest{Query: "SELECT name FROM users"})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(rows))
	}
}
