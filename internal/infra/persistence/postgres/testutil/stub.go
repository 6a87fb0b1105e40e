// Package testutil provides a stub database/sql driver that understands the
// vault_state statements issued by the postgres store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
)

var driverSeq atomic.Int64

// StateConn keeps vault_state in memory. Upserts are staged per transaction
// and only land in Rows on commit.
type StateConn struct {
	mu sync.Mutex

	Execs []string
	// Rows maps bucket to committed payload.
	Rows map[string][]byte
	// Locks counts advisory lock acquisitions.
	Locks int

	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	// FailBucket makes the upsert of that bucket fail.
	FailBucket string
	// FailCode, when set, makes FailBucket return a server error with this SQLSTATE.
	FailCode string

	pending map[string][]byte
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StateConn) {
	conn := &StateConn{Rows: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", driverSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Payload returns a copy of the committed payload for bucket.
func (c *StateConn) Payload(bucket string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.Rows[bucket]
	return append([]byte(nil), p...), ok
}

type stubDriver struct {
	conn *StateConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StateConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }

// Close implements driver.Conn.
func (c *StateConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StateConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StateConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StateConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	c.mu.Lock()
	c.pending = make(map[string][]byte)
	c.mu.Unlock()
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StateConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec fail")
	}
	stmt := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.Contains(stmt, "PG_ADVISORY_XACT_LOCK"):
		c.Locks++
		return driver.RowsAffected(0), nil
	case !strings.HasPrefix(stmt, "INSERT INTO VAULT_STATE"):
		return driver.RowsAffected(0), nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("expected bucket and payload args, got %d", len(args))
	}
	bucket, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("bucket must be a string, got %T", args[0].Value)
	}
	if bucket == c.FailBucket {
		if c.FailCode != "" {
			return nil, &pgconn.PgError{Severity: "ERROR", Code: c.FailCode, Message: "stub failure"}
		}
		return nil, fmt.Errorf("exec fail for %s", bucket)
	}
	payload, _ := args[1].Value.([]byte)
	target := c.pending
	if target == nil {
		target = c.Rows
	}
	target[bucket] = append([]byte(nil), payload...)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for the snapshot select.
func (c *StateConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, errors.New("query fail")
	}
	if !strings.Contains(strings.ToLower(query), "from vault_state") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	buckets := make([]string, 0, len(c.Rows))
	for b := range c.Rows {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	rows := make([][]driver.Value, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []driver.Value{b, append([]byte(nil), c.Rows[b]...)})
	}
	return &stubRows{rows: rows}, nil
}

type stubTx struct {
	conn *StateConn
}

func (t *stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	staged := c.pending
	c.pending = nil
	if c.FailCommit {
		return errors.New("commit fail")
	}
	for bucket, payload := range staged {
		c.Rows[bucket] = payload
	}
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	t.conn.pending = nil
	t.conn.mu.Unlock()
	return nil
}

type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
