package server

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeSQL is a database/sql connector that accepts inserts in memory.
// Like Postgres, it refuses TEXT values with NUL bytes or invalid UTF-8.
type fakeSQL struct {
	mu      sync.Mutex
	execErr error
	inserts [][]driver.Value
}

func openFakeSQL(t *testing.T) (*fakeSQL, *sql.DB) {
	t.Helper()
	f := &fakeSQL{}
	db := sql.OpenDB(f)
	t.Cleanup(func() { _ = db.Close() })
	return f, db
}

func (f *fakeSQL) Connect(context.Context) (driver.Conn, error) { return &fakeSQLConn{f: f}, nil }
func (f *fakeSQL) Driver() driver.Driver                        { return fakeSQLDriver{} }

func (f *fakeSQL) setExecErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr = err
}

func (f *fakeSQL) rows() [][]driver.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]driver.Value(nil), f.inserts...)
}

type fakeSQLDriver struct{}

func (fakeSQLDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fakeSQL is opened through its connector")
}

type fakeSQLConn struct{ f *fakeSQL }

func (c *fakeSQLConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *fakeSQLConn) Close() error              { return nil }
func (c *fakeSQLConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

func (c *fakeSQLConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.execErr != nil {
		return nil, c.f.execErr
	}

	row := make([]driver.Value, len(args))
	for i, a := range args {
		if s, ok := a.Value.(string); ok && (strings.ContainsRune(s, 0) || !utf8.ValidString(s)) {
			return nil, &pgconn.PgError{Severity: "ERROR", Code: "22021", Message: `invalid byte sequence for encoding "UTF8"`}
		}
		row[i] = a.Value
	}
	c.f.inserts = append(c.f.inserts, row)
	return driver.RowsAffected(1), nil
}
