// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package explain

import (
	"errors"

	"github.com/canonical/sqltype/internal/typeinfo"
)

// ErrNoInformation is returned by Prove when nothing could be learnt about
// the result columns, because no result row is reachable or the budget ran
// out.
var ErrNoInformation = errors.New("no information about result columns")

// Nullability is what is proven about the NULL-ness of a result column.
type Nullability int

const (
	// NullUnknown means the column may or may not be NULL.
	NullUnknown Nullability = iota
	// NeverNull means the column is not NULL on any path.
	NeverNull
	// AlwaysNull means the column is NULL on every path.
	AlwaysNull
)

func (n Nullability) String() string {
	switch n {
	case NeverNull:
		return "never null"
	case AlwaysNull:
		return "always null"
	}
	return "unknown"
}

// Proof is what Prove learns about one result column.
type Proof struct {
	Null Nullability
	// Kind is the union of the non-null kinds observed, or zero when some
	// path produced a value of unknown kind.
	Kind typeinfo.Kind
}

// Budget bounds the work done by Prove.
type Budget struct {
	// MaxSteps is the number of instructions executed over all paths.
	MaxSteps int
	// MaxBranches is the number of paths explored.
	MaxBranches int
}

// DefaultBudget is used when a Budget field is zero.
var DefaultBudget = Budget{MaxSteps: 100000, MaxBranches: 1024}

// maxVisits is the number of times one path may execute an instruction.
const maxVisits = 8

// SQLite comparison flags in P5.
const (
	cmpJumpIfNull = 0x10
	cmpNullEq     = 0x80
)

type observation struct {
	reached   bool
	always    bool
	never     bool
	maybe     bool
	kind      typeinfo.Kind
	kindKnown bool
}

func (o *observation) observe(v value) {
	if !o.reached {
		o.reached = true
		o.kindKnown = true
	}
	switch v.null {
	case nullAlways:
		o.always = true
		return
	case nullNever:
		o.never = true
	default:
		o.maybe = true
	}
	if v.kind == 0 {
		o.kindKnown = false
	}
	o.kind |= v.kind
}

func (o *observation) proof() Proof {
	var p Proof
	switch {
	case !o.reached:
		return p
	case o.always && !o.never && !o.maybe:
		p.Null = AlwaysNull
	case o.never && !o.always && !o.maybe:
		p.Null = NeverNull
	}
	if o.kindKnown {
		p.Kind = o.kind
	}
	return p
}

type prover struct {
	machine
	budget   Budget
	steps    int
	branches int
	seen     map[uint64]bool
	pending  []*state
	results  []observation
	rows     int
}

// Prove executes the program symbolically and reports what holds for each
// of its n result columns over all paths that produce a row.
func Prove(p Program, cols []BlockColumn, n int, budget Budget) ([]Proof, error) {
	if budget.MaxSteps <= 0 {
		budget.MaxSteps = DefaultBudget.MaxSteps
	}
	if budget.MaxBranches <= 0 {
		budget.MaxBranches = DefaultBudget.MaxBranches
	}
	pr := &prover{
		machine: machine{program: p, blocks: indexBlocks(cols)},
		budget:  budget,
		seen:    map[uint64]bool{},
		results: make([]observation, n),
	}
	pr.fork(newState())
	for len(pr.pending) > 0 {
		s := pr.pending[len(pr.pending)-1]
		pr.pending = pr.pending[:len(pr.pending)-1]
		if err := pr.run(s); err != nil {
			return nil, err
		}
	}
	if pr.rows == 0 {
		return nil, ErrNoInformation
	}
	proofs := make([]Proof, n)
	for i := range pr.results {
		proofs[i] = pr.results[i].proof()
	}
	return proofs, nil
}

// fork queues a path unless an identical one has been queued before.
func (pr *prover) fork(s *state) bool {
	h := s.hash()
	if pr.seen[h] {
		return true
	}
	pr.seen[h] = true
	pr.branches++
	if pr.branches > pr.budget.MaxBranches {
		return false
	}
	pr.pending = append(pr.pending, s)
	return true
}

// jump queues a copy of s continuing at target, unless target is a loop
// back edge.
func (pr *prover) jump(s *state, target int) bool {
	if target <= s.pc || target >= len(pr.program) {
		return true
	}
	t := s.clone()
	t.pc = target
	return pr.fork(t)
}

// run follows one path until it halts, forking at conditional jumps.
func (pr *prover) run(s *state) error {
	for s.pc >= 0 && s.pc < len(pr.program) {
		pr.steps++
		if pr.steps > pr.budget.MaxSteps {
			return ErrNoInformation
		}
		s.visits[s.pc]++
		if s.visits[s.pc] > maxVisits {
			return nil
		}
		next, ok := pr.step(s, pr.program[s.pc])
		if !ok {
			return ErrNoInformation
		}
		s.pc = next
	}
	return nil
}

// step executes one instruction. It returns the address of the next
// instruction on this path, or -1 when the path ends. ok is false when the
// branch budget is exhausted.
func (pr *prover) step(s *state, in Instruction) (next int, ok bool) {
	next = s.pc + 1
	ok = true
	switch in.Opcode {
	case "Halt":
		return -1, true
	case "Goto", "Init":
		return in.P2, true
	case "ResultRow":
		pr.rows++
		for i := 0; i < in.P2 && i < len(pr.results); i++ {
			pr.results[i].observe(s.get(in.P1 + i))
		}
		return next, true

	case "Gosub":
		s.set(in.P1, value{addr: s.pc, hasAddr: true})
		return in.P2, true
	case "Return":
		v := s.get(in.P1)
		if !v.hasAddr {
			// With P3 set, a subroutine body that was entered by falling
			// into it continues past the Return.
			if in.P3 != 0 {
				return next, true
			}
			return -1, true
		}
		return v.addr + 1, true
	case "InitCoroutine":
		s.set(in.P1, value{addr: in.P3 - 1, hasAddr: true})
		if in.P2 != 0 {
			return in.P2, true
		}
		return next, true
	case "Yield":
		v := s.get(in.P1)
		if !v.hasAddr {
			return -1, true
		}
		s.set(in.P1, value{addr: s.pc, hasAddr: true})
		return v.addr + 1, true
	case "EndCoroutine":
		v := s.get(in.P1)
		if !v.hasAddr || v.addr < 0 || v.addr >= len(pr.program) {
			return -1, true
		}
		s.set(in.P1, unknownValue)
		return pr.program[v.addr].P2, true

	case "Once":
		if s.once[s.pc] {
			return in.P2, true
		}
		s.once[s.pc] = true
		return next, true

	case "IsNull", "NotNull":
		v := s.get(in.P1)
		jumpIfNull := in.Opcode == "IsNull"
		if v.null != nullMaybe {
			if (v.null == nullAlways) == jumpIfNull {
				return in.P2, true
			}
			return next, true
		}
		t := s.clone()
		if jumpIfNull {
			t.refine(in.P1, nullAlways)
			s.refine(in.P1, nullNever)
		} else {
			t.refine(in.P1, nullNever)
			s.refine(in.P1, nullAlways)
		}
		t.pc = in.P2
		if in.P2 > s.pc {
			ok = pr.fork(t)
		}
		return next, ok

	case "HaltIfNull":
		if s.get(in.P3).null == nullAlways {
			return -1, true
		}
		s.refine(in.P3, nullNever)
		return next, true

	case "IfNullRow":
		if c, found := s.cursors[in.P1]; found && c.nullRow {
			s.set(in.P3, nullValue)
			return in.P2, true
		}
		return next, true

	case "Eq", "Ne", "Lt", "Le", "Gt", "Ge":
		return pr.compare(s, in)

	case "Jump":
		for _, target := range []int{in.P1, in.P3} {
			if !pr.jump(s, target) {
				return -1, false
			}
		}
		return in.P2, true

	case "Rewind", "Last", "Sort", "SorterSort", "SeekGE", "SeekGT", "SeekLE", "SeekLT":
		// Positioning on an ephemeral table that nothing was inserted into
		// on this path always takes the jump.
		if c, found := s.cursors[in.P1]; found && c.kind == ephemeralCursor && !c.filled && in.P2 != 0 {
			pr.effect(s, in)
			return in.P2, true
		}
		pr.effect(s, in)
		if in.P2 == 0 {
			return next, true
		}
		return next, pr.jump(s, in.P2)

	case "SeekRowid", "NotExists", "IdxGE", "IdxGT", "IdxLE", "IdxLT",
		"Found", "NotFound", "NoConflict", "IfNoHope", "If", "IfNot", "IfPos",
		"IfNotZero", "DecrJumpZero", "RowSetRead", "RowSetTest", "Filter", "ElseEq",
		"IfSmaller", "VFilter", "FkIfZero", "IfNotOpen", "SequenceTest", "IsType",
		"MustBeInt":
		pr.effect(s, in)
		if in.P2 == 0 {
			return next, true
		}
		return next, pr.jump(s, in.P2)

	case "Next", "Prev", "SorterNext", "VNext":
		// Loops are followed once: the back edge is never taken.
		pr.effect(s, in)
		return next, true
	}
	pr.effect(s, in)
	return next, true
}

// compare handles a comparison jump. Unless NULLs compare equal, a path on
// which the comparison did not take its NULL exit has non-null operands.
func (pr *prover) compare(s *state, in Instruction) (int, bool) {
	next := s.pc + 1
	if in.P5&cmpNullEq != 0 {
		return next, pr.jump(s, in.P2)
	}
	jumpIfNull := in.P5&cmpJumpIfNull != 0
	a, b := s.get(in.P1), s.get(in.P3)
	if a.null == nullAlways || b.null == nullAlways {
		if jumpIfNull {
			return in.P2, true
		}
		return next, true
	}
	if in.P2 <= s.pc {
		return next, true
	}
	t := s.clone()
	t.pc = in.P2
	notNull := s
	if !jumpIfNull {
		notNull = t
	}
	notNull.refine(in.P1, nullNever)
	notNull.refine(in.P3, nullNever)
	return next, pr.fork(t)
}
