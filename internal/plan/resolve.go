package plan

import (
	"regexp"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

// Operand is one side of a join equality: a column of the side's table or,
// for custom joins, a SQL expression using the alias placeholder.
type Operand struct {
	Column string
	Expr   string
}

// JoinPair equates a child-table operand with a parent-table operand.
type JoinPair struct {
	Child  Operand
	Parent Operand
}

// JoinCondition is a resolved join between a child and a parent table.
type JoinCondition struct {
	Pairs []JoinPair
	// ForeignKey is the key the join was derived from; nil for custom joins.
	ForeignKey *dbmd.ForeignKey
}

var bareIdent = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_$]*|"([^"]|"")+")$`)

// Resolve finds the join condition between child and parent for a relation.
//
// A custom join is taken as written. Otherwise the foreign keys declared on
// child that reference parent are considered: with explicit fields the key
// whose child columns equal those fields is used, without them exactly one
// key must exist.
func Resolve(s *dbmd.Schema, child, parent *dbmd.Table, rel *query.Nested, loc sqljson.Location) (JoinCondition, error) {
	if rel.CustomJoin != nil {
		if len(rel.ForeignKeyFields) > 0 {
			return JoinCondition{}, sqljson.NewQueryError(loc, "a custom join condition cannot be combined with foreign key fields")
		}
		return customJoin(s, rel.CustomJoin, loc)
	}

	fks := s.ForeignKeysFrom(child.ID, parent.ID)

	if len(rel.ForeignKeyFields) > 0 {
		fields := make([]string, len(rel.ForeignKeyFields))
		for i, f := range rel.ForeignKeyFields {
			fields[i] = s.NormalizeName(f)
			if _, ok := child.Column(fields[i]); !ok {
				return JoinCondition{}, sqljson.NewUnknownColumnError(loc, child.ID.String(), f)
			}
		}
		for _, fk := range fks {
			if fk.HasChildColumns(fields) {
				return fromForeignKey(fk), nil
			}
		}
		return JoinCondition{}, &sqljson.ForeignKeyError{
			Location: loc,
			Child:    child.ID.String(),
			Parent:   parent.ID.String(),
			Fields:   fields,
		}
	}

	switch len(fks) {
	case 1:
		return fromForeignKey(fks[0]), nil
	case 0:
		return JoinCondition{}, &sqljson.ForeignKeyError{
			Location: loc,
			Child:    child.ID.String(),
			Parent:   parent.ID.String(),
		}
	default:
		cands := make([][]sqljson.ColumnPair, len(fks))
		for i, fk := range fks {
			for _, c := range fk.Components {
				cands[i] = append(cands[i], sqljson.ColumnPair{Child: c.Child, Parent: c.Parent})
			}
		}
		return JoinCondition{}, &sqljson.ForeignKeyError{
			Location:   loc,
			Child:      child.ID.String(),
			Parent:     parent.ID.String(),
			Candidates: cands,
		}
	}
}

func fromForeignKey(fk *dbmd.ForeignKey) JoinCondition {
	jc := JoinCondition{ForeignKey: fk, Pairs: make([]JoinPair, len(fk.Components))}
	for i, c := range fk.Components {
		jc.Pairs[i] = JoinPair{
			Child:  Operand{Column: c.Child},
			Parent: Operand{Column: c.Parent},
		}
	}
	return jc
}

func customJoin(s *dbmd.Schema, cj *query.CustomJoin, loc sqljson.Location) (JoinCondition, error) {
	if len(cj.Pairs) == 0 {
		return JoinCondition{}, sqljson.NewQueryError(loc, "custom join condition has no equated fields")
	}
	jc := JoinCondition{Pairs: make([]JoinPair, len(cj.Pairs))}
	for i, p := range cj.Pairs {
		if p.Child == "" || p.Parent == "" {
			return JoinCondition{}, sqljson.NewQueryError(loc, "custom join pair %d is missing a side", i+1)
		}
		jc.Pairs[i] = JoinPair{Child: operand(s, p.Child), Parent: operand(s, p.Parent)}
	}
	return jc, nil
}

func operand(s *dbmd.Schema, text string) Operand {
	if bareIdent.MatchString(text) {
		return Operand{Column: s.NormalizeName(text)}
	}
	return Operand{Expr: text}
}
