// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltype_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqltype"
	"github.com/canonical/sqltype/internal/schema"
)

type CacheSuite struct{}

var _ = Suite(&CacheSuite{})

// createDB creates a database file with a users table.
func createDB(c *C) string {
	path := filepath.Join(c.MkDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	c.Assert(err, IsNil)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	c.Assert(err, IsNil)
	return path
}

func (s *CacheSuite) TestHandleByRequestAndPath(c *C) {
	path := createDB(c)
	var requests []sqltype.Request
	dc := sqltype.NewDatabaseCache(func(ctx context.Context, req sqltype.Request) (sqltype.Database, error) {
		requests = append(requests, req)
		if req.Name == "url" {
			return sqltype.Database{Path: "file://" + path}, nil
		}
		return sqltype.Database{Path: path}, nil
	}, nil)
	defer dc.Close()
	ctx := context.Background()

	h1, err := dc.Handle(ctx, "a.ts", "db")
	c.Assert(err, IsNil)
	c.Check(h1.Path(), Equals, path)

	h2, err := dc.Handle(ctx, "a.ts", "db")
	c.Assert(err, IsNil)
	c.Check(h2, Equals, h1)
	c.Check(requests, HasLen, 1)

	h3, err := dc.Handle(ctx, "a.ts", "url")
	c.Assert(err, IsNil)
	c.Check(h3, Equals, h1)

	h4, err := dc.Handle(ctx, "b.ts", "db")
	c.Assert(err, IsNil)
	c.Check(h4, Equals, h1)

	c.Check(requests, DeepEquals, []sqltype.Request{
		{Filename: "a.ts", Name: "db"},
		{Filename: "a.ts", Name: "url"},
		{Filename: "b.ts", Name: "db"},
	})
	byRequest, byPath := dc.Cache()
	c.Check(byRequest, HasLen, 3)
	c.Check(byPath, HasLen, 1)
}

func (s *CacheSuite) TestHandleIsReadOnly(c *C) {
	path := createDB(c)
	dc := sqltype.NewDatabaseCache(func(ctx context.Context, req sqltype.Request) (sqltype.Database, error) {
		return sqltype.Database{Path: path}, nil
	}, nil)
	defer dc.Close()

	h, err := dc.Handle(context.Background(), "a.ts", "db")
	c.Assert(err, IsNil)
	_, err = h.DB().Exec("INSERT INTO users (name) VALUES ('x')")
	c.Check(err, ErrorMatches, "attempt to write a readonly database.*")
}

func (s *CacheSuite) TestGivenHandleIsNotClosed(c *C) {
	db, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	given := schema.NewHandle(db)
	defer given.Close()

	dc := sqltype.NewDatabaseCache(func(ctx context.Context, req sqltype.Request) (sqltype.Database, error) {
		return sqltype.Database{Handle: given}, nil
	}, nil)
	h, err := dc.Handle(context.Background(), "a.ts", "db")
	c.Assert(err, IsNil)
	c.Check(h, Equals, given)

	c.Assert(dc.Close(), IsNil)
	c.Check(given.DB().Ping(), IsNil)
	byRequest, _ := dc.Cache()
	c.Check(byRequest, HasLen, 0)
}

func (s *CacheSuite) TestHandleErrors(c *C) {
	dc := sqltype.NewDatabaseCache(func(ctx context.Context, req sqltype.Request) (sqltype.Database, error) {
		switch req.Name {
		case "missing":
			return sqltype.Database{Path: filepath.Join(c.MkDir(), "missing.db")}, nil
		case "empty":
			return sqltype.Database{}, nil
		}
		return sqltype.Database{}, errors.New("unknown database")
	}, nil)
	defer dc.Close()
	ctx := context.Background()

	_, err := dc.Handle(ctx, "a.ts", "other")
	c.Check(err, ErrorMatches, "unknown database")

	_, err = dc.Handle(ctx, "a.ts", "missing")
	c.Check(err, ErrorMatches, `cannot open database ".*missing.db": unable to open database file.*`)

	_, err = dc.Handle(ctx, "a.ts", "empty")
	c.Check(err, ErrorMatches, "empty database path")

	byRequest, byPath := dc.Cache()
	c.Check(byRequest, HasLen, 0)
	c.Check(byPath, HasLen, 0)
}

var databasePathTests = []struct {
	input    string
	expected string
	err      string
}{
	{input: "app.db", expected: "app.db"},
	{input: "./data/../app.db", expected: "app.db"},
	{input: "file:///var/db/app.db", expected: "/var/db/app.db"},
	{input: "file://localhost/var/db/app.db", expected: "/var/db/app.db"},
	{input: "file:app.db?mode=rw", expected: "app.db"},
	{input: "file:///var/db/my%20app.db", expected: "/var/db/my app.db"},
	{input: "file://server/app.db", err: `database URL "file://server/app.db" must not name a host`},
	{input: "", err: "empty database path"},
}

func (s *CacheSuite) TestDatabasePath(c *C) {
	for _, t := range databasePathTests {
		path, err := sqltype.DatabasePath(t.input)
		if t.err != "" {
			c.Check(err, ErrorMatches, t.err, Commentf("input %q", t.input))
			continue
		}
		c.Assert(err, IsNil, Commentf("input %q", t.input))
		c.Check(path, Equals, t.expected, Commentf("input %q", t.input))
	}
}
