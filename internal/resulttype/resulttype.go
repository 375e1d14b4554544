// Package resulttype builds the tree of record shapes a query returns, for
// renderers that emit type declarations in a target language.
//
// The tree mirrors SQL lowering: fields of inline parents are merged into
// the node of the table they were inlined into, referenced parents become
// object fields and child collections become array fields. Structurally
// identical nodes are collapsed after the tree is built, so each distinct
// shape is declared once.
package resulttype

import (
	"strconv"

	"github.com/go-openapi/inflect"

	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/pkg/query"
)

// Kind is the shape of a field value.
type Kind int

const (
	// Scalar is a single database value.
	Scalar Kind = iota
	// Object is a nested record.
	Object
	// Array is a JSON array whose elements are described by Field.Elem.
	Array
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field is one property of a record, or an array element when unnamed.
type Field struct {
	Name string
	Kind Kind
	// Type is set for scalars.
	Type plan.Type
	// Node is set for objects.
	Node *Node
	// Elem describes array elements.
	Elem     *Field
	Nullable bool
}

// Node is a named record shape.
type Node struct {
	Name string
	// Table is the table the record was first built from.
	Table  string
	Fields []Field
}

// Tree is the result type of one query.
type Tree struct {
	Query string
	Root  *Node
	// Nodes lists every distinct node once, root first, then in the order
	// they are first referenced.
	Nodes []*Node
}

// Build derives the result type tree of q.
func Build(q *plan.Query) *Tree {
	in := newInterner()
	root := build(in, q.Root)

	t := &Tree{Query: q.Name, Root: root}
	seen := make(map[*Node]bool)
	var visit func(*Node)
	var visitField func(*Field)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		t.Nodes = append(t.Nodes, n)
		for i := range n.Fields {
			visitField(&n.Fields[i])
		}
	}
	visitField = func(f *Field) {
		if f.Node != nil {
			visit(f.Node)
		}
		if f.Elem != nil {
			visitField(f.Elem)
		}
	}
	visit(root)

	assignNames(t.Nodes)
	return t
}

func build(in *interner, n *plan.Node) *Node {
	outs := n.Outputs()
	node := &Node{Table: n.Table.ID.Name, Fields: make([]Field, 0, len(outs))}
	for _, o := range outs {
		node.Fields = append(node.Fields, outputField(in, o))
	}
	return in.intern(node)
}

func outputField(in *interner, o plan.Output) Field {
	if o.Field != nil {
		return Field{Name: o.Name, Kind: Scalar, Type: o.Field.Type, Nullable: o.Nullable}
	}
	r := o.Relation
	switch r.Kind {
	case query.Object:
		return Field{Name: o.Name, Kind: Object, Node: build(in, r.Node), Nullable: o.Nullable}
	default:
		var elem Field
		if r.Unwrap {
			elem = outputField(in, r.Node.Outputs()[0])
			elem.Name = ""
		} else {
			elem = Field{Kind: Object, Node: build(in, r.Node)}
		}
		return Field{Name: o.Name, Kind: Array, Elem: &elem, Nullable: o.Nullable}
	}
}

// assignNames names nodes after their table in upper camel case. Distinct
// nodes built from the same table get numeric suffixes in order of
// appearance.
func assignNames(nodes []*Node) {
	used := make(map[string]int)
	for _, n := range nodes {
		base := inflect.Camelize(n.Table)
		used[base]++
		if c := used[base]; c > 1 {
			n.Name = base + "_" + strconv.Itoa(c)
		} else {
			n.Name = base
		}
	}
}
