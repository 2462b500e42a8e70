// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/canonical/sqltype/internal/explain"
)

// maxProgramLength bounds the number of EXPLAIN rows read for a statement.
const maxProgramLength = 1 << 16

// Handle is a read-only connection to a database schema.
type Handle struct {
	db   *sql.DB
	path string
	log  *zap.SugaredLogger

	// mutex guards tables, blocks and blocksLoaded.
	mutex        sync.Mutex
	tables       map[tableKey]*Table
	blocks       []explain.BlockColumn
	blocksLoaded bool
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger used for debug output.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(h *Handle) {
		h.log = log
	}
}

// NewHandle returns a Handle on an open database. The database must use the
// github.com/mattn/go-sqlite3 driver.
func NewHandle(db *sql.DB, opts ...Option) *Handle {
	h := &Handle{
		db:     db,
		log:    zap.NewNop().Sugar(),
		tables: map[tableKey]*Table{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open opens the database file at path in read-only mode.
func Open(path string, opts ...Option) (*Handle, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open database %q", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "cannot open database %q", path)
	}
	h := NewHandle(db, opts...)
	h.path = path
	h.log.Debugw("opened database", "path", path)
	return h, nil
}

// dsn returns a read-only URI filename for path.
func dsn(path string) string {
	r := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")
	return "file:" + r.Replace(path) + "?mode=ro"
}

// Path returns the file the Handle was opened on, or "" for a Handle created
// with NewHandle.
func (h *Handle) Path() string {
	return h.path
}

// DB returns the underlying database.
func (h *Handle) DB() *sql.DB {
	return h.db
}

// Close closes the underlying database.
func (h *Handle) Close() error {
	return h.db.Close()
}

// Statement is the result of compiling a query.
type Statement struct {
	Query string

	// Columns are the projected column names.
	Columns []string

	// DeclTypes are the lower case declared types of the projected columns,
	// empty for expressions.
	DeclTypes []string

	// NumInput is the number of bind slots, the largest parameter index.
	NumInput int

	Readonly bool

	// Program is the bytecode of the statement. It is nil if the statement
	// could not be explained.
	Program explain.Program
}

// CompileError is returned when SQLite rejects a query.
type CompileError struct {
	Query string
	Err   error
}

func (e *CompileError) Error() string {
	return e.Err.Error()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Compile prepares query without stepping it. args are bound to the
// statement while it is explained; slots without an argument are bound to
// NULL.
func (h *Handle) Compile(ctx context.Context, query string, args ...driver.NamedValue) (*Statement, error) {
	conn, err := h.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get connection")
	}
	defer conn.Close()

	st := &Statement{Query: query}
	err = conn.Raw(func(dc any) error {
		sc, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return errors.Errorf("unsupported driver connection %T", dc)
		}
		return h.compile(ctx, sc, st, args)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (h *Handle) compile(ctx context.Context, sc *sqlite3.SQLiteConn, st *Statement, args []driver.NamedValue) error {
	ds, err := sc.Prepare(st.Query)
	if err != nil {
		return &CompileError{Query: st.Query, Err: err}
	}
	defer ds.Close()
	stmt := ds.(*sqlite3.SQLiteStmt)
	st.NumInput = stmt.NumInput()
	st.Readonly = stmt.Readonly()
	args = fitArgs(args, st.NumInput)

	dr, err := stmt.QueryContext(ctx, args)
	if err != nil {
		return &CompileError{Query: st.Query, Err: err}
	}
	rows := dr.(*sqlite3.SQLiteRows)
	st.Columns = rows.Columns()
	st.DeclTypes = rows.DeclTypes()
	if err := rows.Close(); err != nil {
		return errors.Wrap(err, "cannot reset statement")
	}

	program, err := h.explain(ctx, sc, st.Query, args)
	if err != nil {
		h.log.Debugw("cannot explain statement", "query", st.Query, "error", err)
		return nil
	}
	st.Program = program
	return nil
}

// fitArgs returns args with one argument per bind slot. Missing slots are
// bound to NULL and arguments past the last slot are dropped.
func fitArgs(args []driver.NamedValue, n int) []driver.NamedValue {
	out := make([]driver.NamedValue, 0, n)
	for _, a := range args {
		if a.Name == "" && (a.Ordinal < 1 || a.Ordinal > n) {
			continue
		}
		out = append(out, a)
	}
	bound := map[int]bool{}
	for _, a := range out {
		if a.Name == "" {
			bound[a.Ordinal] = true
		}
	}
	for i := 1; i <= n; i++ {
		if !bound[i] {
			out = append(out, driver.NamedValue{Ordinal: i})
		}
	}
	return out
}

// explain reads the bytecode program of query.
func (h *Handle) explain(ctx context.Context, sc *sqlite3.SQLiteConn, query string, args []driver.NamedValue) (explain.Program, error) {
	ds, err := sc.Prepare("EXPLAIN " + query)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	dr, err := ds.(*sqlite3.SQLiteStmt).QueryContext(ctx, args)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	dest := make([]driver.Value, len(dr.Columns()))
	if len(dest) < 7 {
		return nil, errors.Errorf("unexpected EXPLAIN columns %v", dr.Columns())
	}
	var program explain.Program
	for {
		err := dr.Next(dest)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if len(program) >= maxProgramLength {
			return nil, errors.New("program too long")
		}
		in := explain.Instruction{
			Addr:   int(asInt(dest[0])),
			Opcode: asString(dest[1]),
			P1:     int(asInt(dest[2])),
			P2:     int(asInt(dest[3])),
			P3:     int(asInt(dest[4])),
			P4:     asString(dest[5]),
			P5:     int(asInt(dest[6])),
		}
		if in.Addr != len(program) {
			return nil, errors.Errorf("unexpected address %d at instruction %d", in.Addr, len(program))
		}
		program = append(program, in)
	}
	return program, nil
}

func asInt(v driver.Value) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		return asInt(string(v))
	}
	return 0
}

func asString(v driver.Value) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return ""
}
