package resulttype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// interner hash-conses nodes by structure. Nodes are interned bottom-up, so
// nested nodes are already canonical and can be identified by number.
type interner struct {
	ids     map[*Node]int
	buckets map[uint64][]interned
}

type interned struct {
	sig  string
	node *Node
}

func newInterner() *interner {
	return &interner{
		ids:     make(map[*Node]int),
		buckets: make(map[uint64][]interned),
	}
}

func (in *interner) intern(n *Node) *Node {
	sig := in.signature(n)
	h := xxh3.HashString(sig)
	for _, e := range in.buckets[h] {
		if e.sig == sig {
			return e.node
		}
	}
	in.buckets[h] = append(in.buckets[h], interned{sig: sig, node: n})
	in.ids[n] = len(in.ids)
	return n
}

func (in *interner) signature(n *Node) string {
	var b strings.Builder
	for i := range n.Fields {
		in.writeField(&b, &n.Fields[i])
		b.WriteByte(';')
	}
	return b.String()
}

func (in *interner) writeField(b *strings.Builder, f *Field) {
	b.WriteString(strconv.Quote(f.Name))
	b.WriteByte(':')
	b.WriteString(f.Kind.String())
	if f.Nullable {
		b.WriteByte('?')
	}
	switch f.Kind {
	case Scalar:
		t := f.Type
		fmt.Fprintf(b, "(%s,%s,%s,%s,%s,%q)", t.Tag, t.DBType, intSig(t.Length), intSig(t.Precision), intSig(t.Scale), t.Override)
	case Object:
		fmt.Fprintf(b, "#%d", in.ids[f.Node])
	case Array:
		b.WriteByte('[')
		in.writeField(b, f.Elem)
		b.WriteByte(']')
	}
}

func intSig(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}
