// Package sqldsl provides typed building blocks for the SQL emitted by the
// query generator.
//
// # Overview
//
// Rather than concatenating SQL strings, the assembler composes small
// values that each render one construct. Rendering is deterministic and
// indentation is handled by the statement types, so nested subqueries come
// out readable without a separate formatting pass.
//
// # Core Interfaces
//
// All DSL types implement one of two interfaces:
//
//   - Expr: SQL expressions (columns, literals, function calls, subqueries)
//   - TableExpr: entries of FROM and JOIN clauses
//
// Statements implement SQLer and render with SQL().
//
// # Expression Types
//
//	Col{Table: "d", Column: "name"}   // d.name
//	Lit("brandName")                  // 'brandName'
//	Raw("d.mesh_id IS NOT NULL")      // raw SQL
//	Coalesce(a, b)                    // coalesce(a, b)
//	Cast{Expr: Lit("[]"), Type: "jsonb"} // '[]'::jsonb
//	SelectAs(expr, "name")            // expr AS name
//
// JSON constructors:
//
//	JSONBBuildObject{Fields: ...}     // jsonb_build_object('k', v, ...)
//	JSONObject{Fields: ..., Returning: "clob"}
//	Agg{Name: "jsonb_agg", Arg: obj, OrderBy: "q.name"}
//	Treat{Expr: e, Type: "json"}      // treat(e AS json)
//
// # Statement Types
//
//	SelectStmt{
//	    Comments:    []string{"base query for table 'drug'"},
//	    ColumnExprs: []Expr{SelectAs(Col{Table: "d", Column: "name"}, "name")},
//	    FromExpr:    TableAs("drug", "d"),
//	    Where:       And(cond1, cond2),
//	}
//
// Every select entry is written on its own line and multi-part WHERE
// clauses put each conjunct on its own line.
//
// Modification statements follow the same layout:
//
//	InsertStmt{Table: "drug", Columns: []string{"id"}, Values: []Expr{Raw(":id")}}
//	UpdateStmt{Table: "drug", Set: []Assignment{{Column: "name", Value: Raw(":name")}}, Where: cond}
//	DeleteStmt{Table: "drug", Alias: "d", Where: cond}
package sqldsl
