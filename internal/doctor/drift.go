package doctor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pthm/sqljson/pkg/dbmd"
)

// Diff lists the differences between a metadata snapshot and the live
// schema, one line each, sorted. Only tables of the snapshot's schemas are
// compared, so a live database holding more schemas does not count as drift.
func Diff(snapshot, live *dbmd.Schema) []string {
	var out []string

	schemas := make(map[string]bool)
	for i := range snapshot.Tables {
		schemas[snapshot.Tables[i].ID.Schema] = true
	}

	liveTables := make(map[dbmd.RelID]*dbmd.Table, len(live.Tables))
	for i := range live.Tables {
		liveTables[live.Tables[i].ID] = &live.Tables[i]
	}
	snapTables := make(map[dbmd.RelID]bool, len(snapshot.Tables))

	for i := range snapshot.Tables {
		st := &snapshot.Tables[i]
		snapTables[st.ID] = true
		lt, ok := liveTables[st.ID]
		if !ok {
			out = append(out, fmt.Sprintf("table %s: missing from database", st.ID))
			continue
		}
		out = append(out, diffColumns(st, lt)...)
	}
	for id := range liveTables {
		if !snapTables[id] && schemas[id.Schema] {
			out = append(out, fmt.Sprintf("table %s: missing from snapshot", id))
		}
	}

	snapFKs := foreignKeySet(snapshot)
	liveFKs := foreignKeySet(live)
	for key := range snapFKs {
		if _, ok := liveFKs[key]; !ok {
			out = append(out, fmt.Sprintf("foreign key %s: missing from database", key))
		}
	}
	for key, child := range liveFKs {
		if _, ok := snapFKs[key]; !ok && schemas[child.Schema] {
			out = append(out, fmt.Sprintf("foreign key %s: missing from snapshot", key))
		}
	}

	slices.Sort(out)
	return out
}

func diffColumns(snap, live *dbmd.Table) []string {
	var out []string
	for _, sc := range snap.Columns {
		lc, ok := live.Column(sc.Name)
		if !ok {
			out = append(out, fmt.Sprintf("column %s.%s: missing from database", snap.ID, sc.Name))
			continue
		}
		if sc.Type != lc.Type {
			out = append(out, fmt.Sprintf("column %s.%s: type %s in snapshot, %s in database", snap.ID, sc.Name, sc.Type, lc.Type))
		}
		if sc.Nullable != lc.Nullable {
			out = append(out, fmt.Sprintf("column %s.%s: nullable %t in snapshot, %t in database", snap.ID, sc.Name, sc.Nullable, lc.Nullable))
		}
		if sc.PrimaryKeyPart != lc.PrimaryKeyPart {
			out = append(out, fmt.Sprintf("column %s.%s: primary key position %d in snapshot, %d in database", snap.ID, sc.Name, sc.PrimaryKeyPart, lc.PrimaryKeyPart))
		}
	}
	for _, lc := range live.Columns {
		if _, ok := snap.Column(lc.Name); !ok {
			out = append(out, fmt.Sprintf("column %s.%s: missing from snapshot", snap.ID, lc.Name))
		}
	}
	return out
}

// foreignKeySet keys foreign keys by their columns rather than by
// constraint name, which snapshots written by hand often leave out. The
// value is the referencing table.
func foreignKeySet(s *dbmd.Schema) map[string]dbmd.RelID {
	set := make(map[string]dbmd.RelID, len(s.ForeignKeys))
	for i := range s.ForeignKeys {
		fk := &s.ForeignKeys[i]
		pairs := make([]string, len(fk.Components))
		for j, c := range fk.Components {
			pairs[j] = c.Child + "->" + c.Parent
		}
		set[fmt.Sprintf("%s(%s) %s", fk.Child, strings.Join(pairs, ","), fk.Parent)] = fk.Child
	}
	return set
}
