// Package executor runs validated query plans against a relational data
// source and returns materialized result sets.
//
// The executor is deliberately dumb: it renders no SQL and makes no
// decisions about the data. Connections are scoped per call with release
// guaranteed on every exit path, each query is bounded by a timeout and a
// row ceiling, and every underlying failure surfaces as a
// QueryExecutionError with a class that tells the caller whether a retry
// could help.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/driftline/driftline/internal/plan"
)

// Defaults for the execution bounds.
const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxRows = 1_000_000
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is the tabular output of one named query.
type Result struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ScalarFloat returns the named column of the first row as a float64.
// The second return is false when the result is empty or the value is
// NULL or non-numeric.
func (r *Result) ScalarFloat(column string) (float64, bool) {
	if r == nil || len(r.Rows) == 0 {
		return 0, false
	}
	return Float(r.Rows[0][column])
}

// Float coerces a scanned value to float64. The second return is false
// for NULLs and non-numeric values.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Results holds the result sets of one executed plan, keyed by query name.
type Results map[string]*Result

// Get returns the result for a named query, or nil.
func (rs Results) Get(name string) *Result {
	return rs[name]
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout bounds each query's execution time.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxRows bounds the number of rows any single query may return.
func WithMaxRows(n int) Option {
	return func(e *Executor) { e.maxRows = n }
}

// Executor executes plans against one sql.DB. Safe for concurrent use;
// the underlying pool scopes connections per call.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

// Open connects to a data source. Supported drivers: "sqlite3" and
// "postgres". SQLite databases get WAL mode and a busy timeout, matching
// how the rest of the system expects concurrent readers to behave.
func Open(driver, dsn string, opts ...Option) (*Executor, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &QueryExecutionError{
			Message:       fmt.Sprintf("open %s data source: %v", driver, err),
			Class:         ClassConnection,
			OriginalError: err,
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &QueryExecutionError{
			Message:       fmt.Sprintf("connect to %s data source: %v", driver, err),
			Class:         ClassConnection,
			OriginalError: err,
		}
	}

	if driver == "sqlite3" {
		// Single writer avoids SQLITE_BUSY; reads stay concurrent via WAL.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, &QueryExecutionError{
					Message:       fmt.Sprintf("apply %q: %v", pragma, err),
					Class:         ClassConnection,
					OriginalError: err,
				}
			}
		}
	}

	e := &Executor{db: db, timeout: DefaultTimeout, maxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewWithDB wraps an existing database handle. Used by tests and by
// callers that manage the pool themselves.
func NewWithDB(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{db: db, timeout: DefaultTimeout, maxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the underlying pool.
func (e *Executor) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Execute runs every named query in the plan and returns the materialized
// result sets. Queries in one plan are independent, so order does not
// affect results; they run sequentially to keep connection use bounded.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (Results, error) {
	results := make(Results, len(p.Queries))
	for _, q := range p.Queries {
		result, err := e.run(ctx, q.SQL, q.Name)
		if err != nil {
			return nil, err
		}
		results[q.Name] = result
	}
	return results, nil
}

// ExecuteRaw runs a single statement outside the planned pipeline. This is
// the introspection path (table listings, schema probes); planned queries
// must go through Execute so that validation is never bypassed silently.
func (e *Executor) ExecuteRaw(ctx context.Context, query string) (*Result, error) {
	return e.run(ctx, query, "raw")
}

func (e *Executor) run(parent context.Context, query, name string) (*Result, error) {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, e.wrap(err, name)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, e.wrap(err, name)
	}

	result := &Result{Name: name, Columns: columns}
	values := make([]any, len(columns))
	scan := make([]any, len(columns))
	for i := range values {
		scan[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			return nil, &QueryExecutionError{
				Message:   fmt.Sprintf("result exceeds row ceiling of %d", e.maxRows),
				QueryName: name,
				Class:     ClassRowLimit,
			}
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, e.wrap(err, name)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.wrap(err, name)
	}

	slog.Debug("query executed",
		"query", name,
		"rows", len(result.Rows),
		"elapsed", time.Since(start))

	return result, nil
}

// normalize converts driver-specific scan values to plain Go types.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// wrap converts any underlying failure into a classified
// QueryExecutionError. The raw driver error never escapes.
func (e *Executor) wrap(err error, name string) error {
	class := ClassSyntax
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		class = ClassTimeout
	case errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.Canceled):
		class = ClassConnection
	case isConnectionMessage(err):
		class = ClassConnection
	}
	return &QueryExecutionError{
		Message:       err.Error(),
		QueryName:     name,
		Class:         class,
		OriginalError: err,
	}
}

// isConnectionMessage sniffs driver messages that indicate the data source
// itself was unreachable rather than the statement being rejected.
func isConnectionMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unable to open database",
		"connection refused",
		"connection reset",
		"database is locked",
		"bad connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
