package sqldsl

import (
	"strings"
)

// Eq represents an equality comparison (=).
type Eq struct {
	Left  Expr
	Right Expr
}

func (e Eq) SQL() string { return e.Left.SQL() + " = " + e.Right.SQL() }

// Cmp is a binary comparison with an arbitrary operator (<, >=, @>).
type Cmp struct {
	Left  Expr
	Op    string
	Right Expr
}

func (c Cmp) SQL() string { return c.Left.SQL() + " " + c.Op + " " + c.Right.SQL() }

// In tests membership in a parenthesized list. A single bound list
// parameter is a valid List.
type In struct {
	Expr Expr
	List []Expr
}

func (i In) SQL() string { return i.Expr.SQL() + " IN (" + renderList(i.List, ", ") + ")" }

// IsNull represents an IS NULL test.
type IsNull struct {
	Expr Expr
}

func (n IsNull) SQL() string { return n.Expr.SQL() + " IS NULL" }

// filterNilExprs removes nil expressions from the slice.
func filterNilExprs(exprs []Expr) []Expr {
	filtered := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// joinExprs renders expressions joined by a separator, wrapped in parentheses if more than one.
func joinExprs(exprs []Expr, sep, emptyVal string) string {
	switch len(exprs) {
	case 0:
		return emptyVal
	case 1:
		return exprs[0].SQL()
	default:
		parts := make([]string, len(exprs))
		for i, e := range exprs {
			parts[i] = e.SQL()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
}

// AndExpr represents a logical AND of multiple expressions.
type AndExpr struct {
	Exprs []Expr
}

func (a AndExpr) SQL() string { return joinExprs(a.Exprs, " AND ", "TRUE") }

// And creates an AND expression from multiple expressions. Nil operands are
// dropped, so optional conditions can be passed unconditionally.
func And(exprs ...Expr) AndExpr {
	return AndExpr{Exprs: filterNilExprs(exprs)}
}

// OrExpr represents a logical OR of multiple expressions.
type OrExpr struct {
	Exprs []Expr
}

func (o OrExpr) SQL() string { return joinExprs(o.Exprs, " OR ", "FALSE") }

// Or creates an OR expression, dropping nil operands.
func Or(exprs ...Expr) OrExpr {
	return OrExpr{Exprs: filterNilExprs(exprs)}
}

// Empty reports whether no conditions remain.
func (a AndExpr) Empty() bool { return len(a.Exprs) == 0 }
