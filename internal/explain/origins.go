// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package explain

// Origin is the table column a result column is read from.
type Origin struct {
	// Schema is "main" or "temp".
	Schema string
	Table  string
	Column string
	// Outer is true when the column is read from, or copied through, a
	// cursor that the program may set to a row of NULLs, as the right side
	// of a LEFT JOIN or the left side of a RIGHT JOIN.
	Outer bool
}

func schemaName(db int) string {
	if db == 1 {
		return "temp"
	}
	return "main"
}

type resultSlot struct {
	reg    int
	origin *origin
	// conflict is set when result rows disagree on the origin.
	conflict bool
	seen     bool
}

// Origins attributes the n result columns of a program to table columns. A
// column is attributed only when every ResultRow instruction takes it from
// a register that is written once in the whole program, by a read of a
// table or index column. Columns computed by expressions, functions or
// subqueries have a nil Origin.
func Origins(p Program, cols []BlockColumn, n int) []*Origin {
	m := &machine{program: p, blocks: indexBlocks(cols), linear: true}
	s := newState()
	s.writes = map[int]int{}
	outer := map[int]bool{}
	slots := make([]resultSlot, n)

	for _, in := range p {
		switch in.Opcode {
		case "NullRow":
			outer[in.P1] = true
		case "ResultRow":
			for i := 0; i < in.P2 && i < n; i++ {
				reg := in.P1 + i
				v := s.get(reg)
				slot := &slots[i]
				if slot.seen && (slot.reg != reg || !slot.origin.same(v.origin)) {
					slot.conflict = true
				}
				slot.seen = true
				slot.reg = reg
				slot.origin = v.origin
			}
			continue
		}
		m.effect(s, in)
	}

	out := make([]*Origin, n)
	for i, slot := range slots {
		if !slot.seen || slot.conflict || slot.origin == nil || s.writes[slot.reg] != 1 {
			continue
		}
		b := slot.origin.block
		out[i] = &Origin{
			Schema: schemaName(b.DB),
			Table:  b.Table,
			Column: b.Name,
			Outer:  slot.origin.readThrough(outer),
		}
	}
	return out
}
