// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Command demo checks and fixes the type arguments of a handful of queries
// against a people and location schema.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/sqltype"
)

const schema = `
CREATE TABLE people (
	name text NOT NULL,
	height_cm integer,
	home_town text
);
CREATE TABLE location (
	town_name text PRIMARY KEY,
	population integer NOT NULL
);`

func createDatabase(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(schema)
	return err
}

func example() error {
	dir, err := os.MkdirTemp("", "sqltype-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "demo.db")
	if err := createDatabase(path); err != nil {
		return err
	}

	a := sqltype.New(func(ctx context.Context, req sqltype.Request) (sqltype.Database, error) {
		return sqltype.Database{Path: path}, nil
	})
	defer a.Close()

	unit := &sqltype.TextUnit{
		File: "demo.ts",
		Sites: []*sqltype.TextCallSite{{
			Query: `INSERT INTO people (name, height_cm, home_town)
				VALUES (:name, :height_cm, :home_town)`,
		}, {
			Query:    `SELECT * FROM people WHERE height_cm > ?`,
			TypeArgs: `<[number], {"name": string}>`,
		}, {
			Query: `SELECT p.name, l.town_name, l.population
				FROM people AS p, location AS l
				WHERE p.home_town = l.town_name
				AND p.height_cm > :height_cm`,
		}, {
			Query: `SELECT count(*) FROM peopel`,
		}},
	}

	ctx := context.Background()
	for i, site := range unit.Sites {
		ds, err := a.Check(ctx, site)
		if err != nil {
			return err
		}
		for _, d := range ds {
			fmt.Printf("call %d: %s\n", i, d)
		}
	}

	n, err := a.FixUnit(ctx, unit)
	if err != nil {
		return err
	}
	fmt.Printf("Applied %d fixes:\n", n)
	for i, site := range unit.Sites {
		fmt.Printf("call %d: %s\n", i, site.TypeArgs)
	}
	return nil
}

func main() {
	if err := example(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
