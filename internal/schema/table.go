// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/sqltype/internal/explain"
	"github.com/canonical/sqltype/internal/typeinfo"
)

// Queryer is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnInfo describes a table column.
type ColumnInfo struct {
	Name     string
	DeclType string

	// Affinity is the kind of values stored in the column.
	Affinity typeinfo.Kind

	// NotNull is true when the column can never hold NULL, either because
	// it is declared NOT NULL or because it is an alias for the rowid.
	NotNull bool

	// PrimaryKey is the 1-based position of the column in the primary key,
	// or 0.
	PrimaryKey int
}

// Kind returns the static kind of the column.
func (c ColumnInfo) Kind() typeinfo.Kind {
	return typeinfo.ColumnKind(c.Affinity, c.NotNull)
}

// Table describes a table or view.
type Table struct {
	Schema       string
	Name         string
	Type         string
	Strict       bool
	WithoutRowid bool
	// PrimaryKeyIndex is true when the primary key is stored in an index
	// b-tree of its own.
	PrimaryKeyIndex bool
	Columns         []ColumnInfo
}

// Column returns the named column. Names are matched case insensitively.
func (t *Table) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

type tableKey struct {
	schema, table string
}

const tableQuery = `
SELECT t.name, t.type, t.strict, t.wr, c.name, c.type, c."notnull", c.pk,
	(SELECT count(*) FROM pragma_index_list(t.name, t.schema) AS il WHERE il.origin = 'pk')
FROM pragma_table_list AS t
JOIN pragma_table_info(t.name, t.schema) AS c
WHERE t.schema = ? AND t.name = ? COLLATE NOCASE
ORDER BY c.cid`

// LoadTable reads the metadata of a table. It returns nil if the table does
// not exist.
func LoadTable(ctx context.Context, q Queryer, schemaName, table string) (*Table, error) {
	rows, err := q.QueryContext(ctx, tableQuery, schemaName, table)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read metadata of table %q", table)
	}
	defer rows.Close()

	var t *Table
	for rows.Next() {
		var (
			name, typ, colName, colType string
			strict, wr, notNull        bool
			pk, pkIndexes               int
		)
		if err := rows.Scan(&name, &typ, &strict, &wr, &colName, &colType, &notNull, &pk, &pkIndexes); err != nil {
			return nil, errors.Wrapf(err, "cannot read metadata of table %q", table)
		}
		if t == nil {
			t = &Table{
				Schema:          schemaName,
				Name:            name,
				Type:            typ,
				Strict:          strict,
				WithoutRowid:    wr,
				PrimaryKeyIndex: pkIndexes > 0,
			}
		}
		t.Columns = append(t.Columns, ColumnInfo{
			Name:       colName,
			DeclType:   colType,
			Affinity:   typeinfo.Affinity(colType, strict),
			NotNull:    notNull,
			PrimaryKey: pk,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read metadata of table %q", table)
	}
	if t != nil {
		markRowidAlias(t)
	}
	return t, nil
}

// markRowidAlias makes the INTEGER PRIMARY KEY column of a rowid table NOT
// NULL. A column that is part of a composite primary key is not an alias,
// and neither is an INTEGER PRIMARY KEY DESC, which gets an index.
func markRowidAlias(t *Table) {
	if t.WithoutRowid || t.PrimaryKeyIndex || t.Type != "table" {
		return
	}
	pks := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		pks[i] = c.PrimaryKey
	}
	if i := aliasColumn(pks, func(i int) string { return t.Columns[i].DeclType }); i >= 0 {
		t.Columns[i].NotNull = true
	}
}

// aliasColumn returns the position of the only primary key column when it
// is declared INTEGER, or -1.
func aliasColumn(pks []int, declType func(int) string) int {
	alias := -1
	for i, pk := range pks {
		if pk == 0 {
			continue
		}
		if alias != -1 {
			return -1
		}
		alias = i
	}
	if alias == -1 || !strings.EqualFold(declType(alias), "INTEGER") {
		return -1
	}
	return alias
}

// Table returns the metadata of a table in the given schema, "main" or
// "temp". It returns nil if there is no such table.
func (h *Handle) Table(ctx context.Context, schemaName, table string) (*Table, error) {
	key := tableKey{schemaName, strings.ToLower(table)}
	h.mutex.Lock()
	t, ok := h.tables[key]
	h.mutex.Unlock()
	if ok {
		return t, nil
	}
	t, err := LoadTable(ctx, h.db, schemaName, table)
	if err != nil {
		return nil, err
	}
	h.mutex.Lock()
	h.tables[key] = t
	h.mutex.Unlock()
	return t, nil
}

// Column returns the metadata of a table column. found is false if the
// table or the column do not exist.
func (h *Handle) Column(ctx context.Context, schemaName, table, column string) (info ColumnInfo, found bool, err error) {
	t, err := h.Table(ctx, schemaName, table)
	if err != nil || t == nil {
		return ColumnInfo{}, false, err
	}
	info, found = t.Column(column)
	return info, found, nil
}

const schemaObjects = `
WITH s AS (
	SELECT 0 AS dbnum, 'main' AS dbname, type, name, tbl_name, rootpage FROM main.sqlite_schema
	UNION ALL
	SELECT 1, 'temp', type, name, tbl_name, rootpage FROM temp.sqlite_schema
)`

// Each query returns the columns of one kind of b-tree. They are not
// combined with UNION ALL, which loses the rows of the WITHOUT ROWID query.
var blocksQueries = []string{
	// Rowid tables store their columns in declaration order.
	schemaObjects + `
SELECT s.dbnum, s.rootpage, c.cid, s.tbl_name, c.name, c.type, c."notnull", c.pk, 0, tl.strict, tl.wr,
	(SELECT count(*) FROM pragma_index_list(s.name, s.dbname) AS il WHERE il.origin = 'pk')
FROM s
JOIN pragma_table_list AS tl ON tl.schema = s.dbname AND tl.name = s.tbl_name
JOIN pragma_table_info(s.name, s.dbname) AS c
WHERE s.type = 'table' AND NOT tl.wr`,

	// WITHOUT ROWID tables store the primary key columns first, in the
	// order of their primary key index.
	schemaObjects + `
SELECT s.dbnum, s.rootpage, x.seqno, s.tbl_name, c.name, c.type, c."notnull", c.pk, 0, tl.strict, tl.wr, 1
FROM s
JOIN pragma_table_list AS tl ON tl.schema = s.dbname AND tl.name = s.tbl_name
JOIN pragma_index_list(s.name, s.dbname) AS il
JOIN pragma_index_xinfo(il.name, s.dbname) AS x
JOIN pragma_table_info(s.name, s.dbname) AS c ON c.cid = x.cid
WHERE s.type = 'table' AND tl.wr AND il.origin = 'pk'`,

	// Index records end with the rowid, or the primary key of a WITHOUT
	// ROWID table.
	schemaObjects + `
SELECT s.dbnum, s.rootpage, x.seqno, s.tbl_name, c.name, c.type, c."notnull", c.pk, 1, tl.strict, tl.wr, 0
FROM s
JOIN pragma_index_xinfo(s.name, s.dbname) AS x
LEFT JOIN pragma_table_info(s.tbl_name, s.dbname) AS c ON c.cid = x.cid
JOIN pragma_table_list AS tl ON tl.schema = s.dbname AND tl.name = s.tbl_name
WHERE s.type = 'index'`,
}

// LoadBlocks reads the column layout of every table and index b-tree in
// the main and temp schemas.
func LoadBlocks(ctx context.Context, q Queryer) ([]explain.BlockColumn, error) {
	var cols []explain.BlockColumn
	for _, query := range blocksQueries {
		var err error
		cols, err = loadBlocks(ctx, q, query, cols)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read schema layout")
		}
	}
	markBlockAliases(cols)
	return cols, nil
}

func loadBlocks(ctx context.Context, q Queryer, query string, cols []explain.BlockColumn) ([]explain.BlockColumn, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bc                explain.BlockColumn
			name, typ         sql.NullString
			notNull           sql.NullBool
			pk                sql.NullInt64
			index, strict, wr bool
			pkIndexes         int
		)
		if err := rows.Scan(&bc.DB, &bc.RootPage, &bc.Column, &bc.Table, &name, &typ, &notNull, &pk, &index, &strict, &wr, &pkIndexes); err != nil {
			return nil, err
		}
		bc.Name = name.String
		bc.DeclType = typ.String
		bc.NotNull = notNull.Bool
		bc.PrimaryKey = int(pk.Int64)
		bc.Index = index
		bc.Strict = strict
		bc.WithoutRowid = wr
		bc.PrimaryKeyIndex = pkIndexes > 0
		cols = append(cols, bc)
	}
	return cols, rows.Err()
}

// markBlockAliases marks the INTEGER PRIMARY KEY column of each rowid table
// as the alias for the rowid.
func markBlockAliases(cols []explain.BlockColumn) {
	type key struct{ db, rootPage int }
	tables := map[key][]int{}
	for i, bc := range cols {
		if bc.Index || bc.WithoutRowid || bc.PrimaryKeyIndex {
			continue
		}
		k := key{bc.DB, bc.RootPage}
		tables[k] = append(tables[k], i)
	}
	for _, idx := range tables {
		pks := make([]int, len(idx))
		for j, i := range idx {
			pks[j] = cols[i].PrimaryKey
		}
		if j := aliasColumn(pks, func(j int) string { return cols[idx[j]].DeclType }); j >= 0 {
			cols[idx[j]].RowidAlias = true
			cols[idx[j]].NotNull = true
		}
	}
}

// Blocks returns the b-tree column layout of the schema.
func (h *Handle) Blocks(ctx context.Context) ([]explain.BlockColumn, error) {
	h.mutex.Lock()
	if h.blocksLoaded {
		defer h.mutex.Unlock()
		return h.blocks, nil
	}
	h.mutex.Unlock()
	cols, err := LoadBlocks(ctx, h.db)
	if err != nil {
		return nil, err
	}
	h.mutex.Lock()
	h.blocks, h.blocksLoaded = cols, true
	h.mutex.Unlock()
	return cols, nil
}
