// Package sqljson generates SQL that returns hierarchical query results as
// nested JSON, together with descriptions of the result types.
//
// A query is defined as a tree rooted at one table. Each level lists the
// table's own fields and three kinds of nested relations:
//
//   - inline parents, whose fields are flattened into the current object
//   - referenced parents, nested as a single JSON object field
//   - child collections, nested as a JSON array field
//
// Relations are resolved against database metadata (package pkg/dbmd), so a
// join only needs to be spelled out when the schema is ambiguous. Each query
// can be rendered as ordinary multi-column rows, as one JSON object per row,
// or as a single row holding a JSON array of all objects.
//
// # Packages
//
//   - pkg/dbmd: database metadata model and snapshot files
//   - pkg/query: query definitions, builder functions and document loading
//   - pkg/introspect: metadata extraction from a live PostgreSQL database
//   - pkg/compiler: SQL and result type generation for a query group
//   - pkg/clientgen: type declarations for Go, TypeScript and Python
//
// # Basic Usage
//
//	schema, _ := dbmd.Load("dbmd.yaml")
//	group := query.Group{
//		Queries: []query.Query{
//			query.New("drugs", query.Table("drug",
//				query.Cols("name", "mesh_id"),
//				query.Ref("compound", query.Table("compound", query.Cols("display_name"))),
//				query.Children("brands", query.Table("brand", query.Cols("brand_name"))),
//			)),
//		},
//	}
//	res, err := compiler.Generate(ctx, schema, &group)
//
// This package holds the error kinds shared by all of the above. Query
// failures are reported per query; use the Is*Err helpers to classify them.
package sqljson
