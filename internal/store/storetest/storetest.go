// Package storetest provides an in-memory SQLite-backed store.Client and a
// fault-injecting wrapper for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/store"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory database private to t.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	// Every new connection to :memory: is a fresh database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// Open returns a store.Client over OpenDB.
func Open(t testing.TB) (*store.GormClient, *gorm.DB) {
	t.Helper()
	db := OpenDB(t)
	return store.NewGormClient(db, nil), db
}

// Call records one request made through a Faulty client.
type Call struct {
	Verb    string
	Table   string
	Filters []store.Filter
	Rows    any
}

// Faulty wraps a store.Client, records every call, and fails the calls
// registered with Fail.
type Faulty struct {
	next store.Client

	mu    sync.Mutex
	fail  map[string]error
	calls []Call
}

// NewFaulty wraps next.
func NewFaulty(next store.Client) *Faulty {
	return &Faulty{next: next, fail: map[string]error{}}
}

// Fail makes every subsequent verb call on table return err. A nil err
// clears the fault.
func (f *Faulty) Fail(verb, table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := verb + " " + table
	if err == nil {
		delete(f.fail, key)
		return
	}
	f.fail[key] = err
}

// Calls returns the recorded calls, optionally restricted to verb.
func (f *Faulty) Calls(verb string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if verb == "" || c.Verb == verb {
			out = append(out, c)
		}
	}
	return out
}

func (f *Faulty) record(verb, table string, filters []store.Filter, rows any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Verb: verb, Table: table, Filters: filters, Rows: rows})
	if err := f.fail[verb+" "+table]; err != nil {
		return fmt.Errorf("%s %s: %w", verb, table, err)
	}
	return nil
}

func (f *Faulty) Select(ctx context.Context, table string, dest any, q store.Query) error {
	if err := f.record("select", table, q.Filters, nil); err != nil {
		return err
	}
	return f.next.Select(ctx, table, dest, q)
}

func (f *Faulty) Insert(ctx context.Context, table string, rows any) error {
	if err := f.record("insert", table, nil, rows); err != nil {
		return err
	}
	return f.next.Insert(ctx, table, rows)
}

func (f *Faulty) Update(ctx context.Context, table string, patch map[string]any, filters ...store.Filter) (int64, error) {
	if err := f.record("update", table, filters, patch); err != nil {
		return 0, err
	}
	return f.next.Update(ctx, table, patch, filters...)
}

func (f *Faulty) Delete(ctx context.Context, table string, filters ...store.Filter) error {
	if err := f.record("delete", table, filters, nil); err != nil {
		return err
	}
	return f.next.Delete(ctx, table, filters...)
}

func (f *Faulty) Count(ctx context.Context, table string, filters ...store.Filter) (int64, error) {
	if err := f.record("count", table, filters, nil); err != nil {
		return 0, err
	}
	return f.next.Count(ctx, table, filters...)
}
