// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package explain

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/canonical/sqltype/internal/typeinfo"
)

type nullness uint8

const (
	nullMaybe nullness = iota
	nullNever
	nullAlways
)

// or returns the nullness of an expression that is NULL when either operand
// is NULL.
func (n nullness) or(o nullness) nullness {
	switch {
	case n == nullAlways || o == nullAlways:
		return nullAlways
	case n == nullNever && o == nullNever:
		return nullNever
	}
	return nullMaybe
}

// origin is the b-tree column a register value was read from.
type origin struct {
	cursor int
	block  BlockColumn
	// via holds the cursors of the ephemeral tables, sorters and pseudo
	// tables the value was copied through after it was read.
	via []int
}

// readThrough reports whether the value was read from or copied through
// any of the cursors.
func (o *origin) readThrough(cursors map[int]bool) bool {
	if cursors[o.cursor] {
		return true
	}
	for _, c := range o.via {
		if cursors[c] {
			return true
		}
	}
	return false
}

func (o *origin) same(p *origin) bool {
	if o == nil || p == nil {
		return o == p
	}
	return o.cursor == p.cursor && o.block.DB == p.block.DB &&
		o.block.Table == p.block.Table && o.block.Name == p.block.Name
}

// value is the abstract content of a register.
type value struct {
	// kind holds the kinds of non-null values the register may hold. Zero
	// means nothing is known.
	kind   typeinfo.Kind
	null   nullness
	origin *origin
	// record holds the fields of a record built by MakeRecord.
	record []value
	// addr is a saved program counter, for Gosub and coroutines.
	addr    int
	hasAddr bool
}

var unknownValue = value{null: nullMaybe}

// through returns v as read back from the cursor cur.
func (v value) through(cur int) value {
	if v.origin != nil {
		o := *v.origin
		o.via = append(o.via[:len(o.via):len(o.via)], cur)
		v.origin = &o
	}
	return v
}

var nullValue = value{null: nullAlways}

func constant(k typeinfo.Kind) value {
	return value{kind: k, null: nullNever}
}

// join returns a value that may be either v or w.
func join(v, w value) value {
	out := value{kind: v.kind | w.kind, null: v.null}
	if v.kind == 0 && v.null != nullAlways || w.kind == 0 && w.null != nullAlways {
		out.kind = 0
	}
	if v.null != w.null {
		out.null = nullMaybe
	}
	if v.origin.same(w.origin) {
		out.origin = v.origin
	}
	if len(v.record) == len(w.record) {
		for i := range v.record {
			out.record = append(out.record, join(v.record[i], w.record[i]))
		}
	}
	return out
}

func joinRows(a, b []value) []value {
	if a == nil {
		return b
	}
	if len(a) != len(b) {
		return nil
	}
	out := make([]value, len(a))
	for i := range a {
		out[i] = join(a[i], b[i])
	}
	return out
}

type cursorKind uint8

const (
	tableCursor cursorKind = iota
	indexCursor
	pseudoCursor
	ephemeralCursor
	virtualCursor
)

type cursor struct {
	kind     cursorKind
	db       int
	rootPage int
	// pseudoReg is the register holding the current row of a pseudo cursor.
	pseudoReg int
	// rows is the join of the records inserted into an ephemeral table or
	// sorter.
	rows []value
	// filled is set once a record has been inserted into an ephemeral
	// table or sorter.
	filled  bool
	nullRow bool
	// known holds nullness learnt from comparisons on the current row.
	known map[int]nullness
}

func (c *cursor) clone() *cursor {
	d := *c
	if c.known != nil {
		d.known = make(map[int]nullness, len(c.known))
		for k, v := range c.known {
			d.known[k] = v
		}
	}
	return &d
}

// moved forgets what is known about the current row.
func (c *cursor) moved() {
	c.nullRow = false
	c.known = nil
}

type state struct {
	pc      int
	regs    map[int]value
	cursors map[int]*cursor
	once    map[int]bool
	visits  map[int]int
	// writes counts register writes. It is only kept by the linear pass.
	writes map[int]int
}

func newState() *state {
	return &state{
		regs:    map[int]value{},
		cursors: map[int]*cursor{},
		once:    map[int]bool{},
		visits:  map[int]int{},
	}
}

func (s *state) clone() *state {
	t := &state{
		pc:      s.pc,
		regs:    make(map[int]value, len(s.regs)),
		cursors: make(map[int]*cursor, len(s.cursors)),
		once:    make(map[int]bool, len(s.once)),
		visits:  make(map[int]int, len(s.visits)),
	}
	for k, v := range s.regs {
		t.regs[k] = v
	}
	for k, c := range s.cursors {
		t.cursors[k] = c.clone()
	}
	for k, v := range s.once {
		t.once[k] = v
	}
	for k, v := range s.visits {
		t.visits[k] = v
	}
	return t
}

func (s *state) get(r int) value {
	if v, ok := s.regs[r]; ok {
		return v
	}
	return unknownValue
}

func (s *state) set(r int, v value) {
	if s.writes != nil {
		s.writes[r]++
		if s.writes[r] > 1 {
			v.origin = nil
		}
	}
	s.regs[r] = v
}

func (s *state) cursor(c int) *cursor {
	cur, ok := s.cursors[c]
	if !ok {
		cur = &cursor{kind: virtualCursor}
		s.cursors[c] = cur
	}
	return cur
}

// refine records that the register r has nullness n on this path.
func (s *state) refine(r int, n nullness) {
	v := s.get(r)
	v.null = n
	if n == nullAlways {
		v.kind = 0
		v.record = nil
	}
	s.regs[r] = v
	if v.origin != nil && len(v.origin.via) == 0 {
		if c, ok := s.cursors[v.origin.cursor]; ok {
			if c.known == nil {
				c.known = map[int]nullness{}
			}
			c.known[v.origin.block.Column] = n
		}
	}
}

// hash summarises the state for detecting repeated work.
func (s *state) hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	var putValue func(v value)
	putValue = func(v value) {
		put(int(v.kind))
		put(int(v.null))
		if v.origin != nil {
			put(v.origin.cursor)
			put(v.origin.block.Column)
		} else {
			put(-1)
		}
		if v.hasAddr {
			put(v.addr)
		} else {
			put(-1)
		}
		put(len(v.record))
		for _, f := range v.record {
			putValue(f)
		}
	}

	put(s.pc)
	for _, r := range sortedKeys(s.regs) {
		put(r)
		putValue(s.regs[r])
	}
	for _, k := range sortedKeys(s.cursors) {
		c := s.cursors[k]
		put(k)
		put(int(c.kind))
		put(c.rootPage)
		if c.nullRow {
			put(1)
		} else {
			put(0)
		}
		if c.filled {
			put(1)
		} else {
			put(0)
		}
		for _, col := range sortedKeys(c.known) {
			put(col)
			put(int(c.known[col]))
		}
		put(len(c.rows))
		for _, f := range c.rows {
			putValue(f)
		}
	}
	for _, k := range sortedKeys(s.once) {
		put(k)
	}
	return h.Sum64()
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// machine holds what is shared by all paths through a program.
type machine struct {
	program Program
	blocks  blocks
	// linear is set for the single in-order pass, where control flow and
	// refinement are ignored.
	linear bool
}

// column returns the value read by a Column instruction.
func (m *machine) column(s *state, cur, col int) value {
	c, ok := s.cursors[cur]
	if !ok {
		return unknownValue
	}
	if c.nullRow && !m.linear {
		return nullValue
	}
	switch c.kind {
	case tableCursor, indexCursor:
		bc, ok := m.blocks.column(c.db, c.rootPage, col)
		if !ok || bc.Name == "" {
			return unknownValue
		}
		v := value{
			kind:   typeinfo.Affinity(bc.DeclType, bc.Strict).Expand(),
			null:   nullMaybe,
			origin: &origin{cursor: cur, block: bc},
		}
		if bc.NotNull {
			v.null = nullNever
		}
		if n, ok := c.known[col]; ok {
			v.null = n
			if n == nullAlways {
				v.kind = 0
			}
		}
		return v
	case pseudoCursor:
		rec := s.get(c.pseudoReg).record
		if col < len(rec) {
			return rec[col].through(cur)
		}
	case ephemeralCursor:
		if col < len(c.rows) {
			return c.rows[col].through(cur)
		}
	}
	return unknownValue
}

// rowid returns the value read by a Rowid instruction.
func (m *machine) rowid(s *state, cur int) value {
	c, ok := s.cursors[cur]
	if ok && c.nullRow && !m.linear {
		return nullValue
	}
	v := constant(typeinfo.Number)
	if ok && c.kind == tableCursor {
		if bc, ok := m.blocks.rowidAlias(c.db, c.rootPage); ok {
			v.origin = &origin{cursor: cur, block: bc}
		}
	}
	return v
}

// functionName returns the name of the function in a P4 operand such as
// "count(1)".
func functionName(p4 string) string {
	if i := strings.IndexByte(p4, '('); i >= 0 {
		p4 = p4[:i]
	}
	return strings.ToLower(p4)
}

// functionResult returns the value of a scalar function call. Only
// functions whose result does not depend on their arguments are known.
func functionResult(name string) value {
	switch name {
	case "current_time", "current_date", "current_timestamp", "sqlite_version":
		return constant(typeinfo.String)
	}
	return unknownValue
}

// aggregateResult returns the final value of an aggregate function.
func aggregateResult(name string) value {
	switch name {
	case "count", "total":
		return constant(typeinfo.Number)
	case "sum", "avg":
		return value{kind: typeinfo.Number, null: nullMaybe}
	case "group_concat", "string_agg":
		return value{kind: typeinfo.String, null: nullMaybe}
	}
	return unknownValue
}

// castKind maps the affinity operand of a Cast instruction to a kind.
func castKind(affinity int) typeinfo.Kind {
	switch affinity {
	case 'A':
		return typeinfo.Buffer
	case 'B':
		return typeinfo.String
	case 'C', 'D', 'E':
		return typeinfo.Number
	}
	return 0
}

// openFlagP2IsReg marks an Open instruction whose root page is held in the
// register P2.
const openFlagP2IsReg = 0x02

// effect applies the data effects of an instruction to the state.
func (m *machine) effect(s *state, in Instruction) {
	switch in.Opcode {
	case "OpenRead", "OpenWrite", "ReopenIdx":
		c := &cursor{kind: tableCursor, db: in.P3, rootPage: in.P2}
		if in.P5&openFlagP2IsReg != 0 {
			c.kind = virtualCursor
		} else if m.isIndex(in.P3, in.P2) {
			c.kind = indexCursor
		}
		s.cursors[in.P1] = c
	case "OpenEphemeral", "OpenAutoindex", "SorterOpen":
		s.cursors[in.P1] = &cursor{kind: ephemeralCursor}
	case "OpenPseudo":
		s.cursors[in.P1] = &cursor{kind: pseudoCursor, pseudoReg: in.P2}
	case "OpenDup":
		if c, ok := s.cursors[in.P2]; ok {
			s.cursors[in.P1] = c.clone()
		}
	case "VOpen":
		s.cursors[in.P1] = &cursor{kind: virtualCursor}
	case "Close":
		delete(s.cursors, in.P1)

	case "NullRow":
		s.cursor(in.P1).nullRow = true
	case "Rewind", "Last", "Sort", "SorterSort", "Next", "Prev", "SorterNext",
		"SeekRowid", "NotExists", "SeekGE", "SeekGT", "SeekLE", "SeekLT", "SeekEnd",
		"Found", "NotFound", "NoConflict", "IfNoHope", "VFilter", "VNext":
		if c, ok := s.cursors[in.P1]; ok {
			c.moved()
		}
	case "DeferredSeek":
		if c, ok := s.cursors[in.P3]; ok {
			c.moved()
		}

	case "Column":
		s.set(in.P3, m.column(s, in.P1, in.P2))
	case "VColumn":
		s.set(in.P3, unknownValue)
	case "Rowid":
		s.set(in.P2, m.rowid(s, in.P1))
	case "IdxRowid", "NewRowid", "Sequence", "Count":
		v := constant(typeinfo.Number)
		if c, ok := s.cursors[in.P1]; ok && c.nullRow && !m.linear {
			v = nullValue
		}
		s.set(in.P2, v)
	case "RowData", "SorterData":
		v := constant(typeinfo.Buffer)
		if c, ok := s.cursors[in.P1]; ok && c.rows != nil {
			v.record = make([]value, len(c.rows))
			for i, f := range c.rows {
				v.record[i] = f.through(in.P1)
			}
		}
		s.set(in.P2, v)
	case "MakeRecord":
		rec := make([]value, in.P2)
		for i := range rec {
			rec[i] = s.get(in.P1 + i)
		}
		v := constant(typeinfo.Buffer)
		v.record = rec
		s.set(in.P3, v)
	case "Insert", "IdxInsert", "SorterInsert":
		if c, ok := s.cursors[in.P1]; ok && c.kind == ephemeralCursor {
			c.rows = joinRows(c.rows, s.get(in.P2).record)
			c.filled = true
		}

	case "Integer", "Int64", "Real":
		s.set(in.P2, constant(typeinfo.Number))
	case "String8", "String":
		s.set(in.P2, constant(typeinfo.String))
	case "Blob":
		s.set(in.P2, constant(typeinfo.Buffer))
	case "Null", "BeginSubrtn":
		last := in.P2
		if in.P3 > last {
			last = in.P3
		}
		for r := in.P2; r <= last; r++ {
			s.set(r, nullValue)
		}
	case "SoftNull":
		s.set(in.P1, nullValue)
	case "Variable":
		s.set(in.P2, unknownValue)

	case "Copy":
		for i := 0; i <= in.P3; i++ {
			s.set(in.P2+i, s.get(in.P1+i))
		}
	case "SCopy":
		s.set(in.P2, s.get(in.P1))
	case "IntCopy":
		v := s.get(in.P1)
		s.set(in.P2, value{kind: typeinfo.Number, null: v.null, origin: v.origin})
	case "Move":
		for i := 0; i < in.P3; i++ {
			s.set(in.P2+i, s.get(in.P1+i))
			s.set(in.P1+i, unknownValue)
		}

	case "Concat":
		s.set(in.P3, value{kind: typeinfo.String, null: s.get(in.P1).null.or(s.get(in.P2).null)})
	case "Add", "Subtract", "Multiply", "BitAnd", "BitOr", "ShiftLeft", "ShiftRight":
		s.set(in.P3, value{kind: typeinfo.Number, null: s.get(in.P1).null.or(s.get(in.P2).null)})
	case "Divide", "Remainder":
		n := s.get(in.P1).null.or(s.get(in.P2).null)
		if n == nullNever {
			// Division by zero is NULL.
			n = nullMaybe
		}
		s.set(in.P3, value{kind: typeinfo.Number, null: n})
	case "AddImm":
		s.set(in.P1, constant(typeinfo.Number))
	case "MustBeInt":
		v := s.get(in.P1)
		s.set(in.P1, value{kind: typeinfo.Number, null: v.null, origin: v.origin})
	case "Not", "BitNot":
		s.set(in.P2, value{kind: typeinfo.Number, null: s.get(in.P1).null})
	case "IsTrue":
		s.set(in.P2, constant(typeinfo.Number))
	case "ZeroOrNull":
		s.set(in.P2, value{kind: typeinfo.Number, null: s.get(in.P1).null.or(s.get(in.P3).null)})
	case "Cast":
		v := s.get(in.P1)
		k := castKind(in.P2)
		if v.null == nullAlways {
			k = 0
		}
		s.set(in.P1, value{kind: k, null: v.null, origin: v.origin})

	case "Function", "PureFunction", "PureFunc":
		s.set(in.P3, functionResult(functionName(in.P4)))
	case "AggFinal":
		s.set(in.P1, aggregateResult(functionName(in.P4)))
	case "AggValue":
		s.set(in.P3, aggregateResult(functionName(in.P4)))
	case "AggStep", "AggStep1", "AggInverse":
		// The accumulator is opaque until AggFinal.
	}
}

// isIndex reports whether the b-tree is an index.
func (m *machine) isIndex(db, rootPage int) bool {
	cols := m.blocks[blockKey{db, rootPage}]
	return len(cols) > 0 && cols[0].Index
}
