// Package sqlgen lowers a resolved query plan into SQL text.
//
// Every node of the plan becomes a base query selecting one column per
// output field. Inline parents are joined as derived tables exporting their
// join columns under hidden names, referenced parents become correlated
// scalar subqueries building one JSON object, and child collections become
// correlated subqueries aggregating JSON objects (or bare values when
// unwrapped) into an array. The three result representations share this
// lowering and differ only in how the root base query is wrapped.
//
// Table aliases are unique within a whole statement. JSON functions come
// from a Dialect: Postgres uses jsonb_build_object and jsonb_agg, Oracle
// uses json_object and json_arrayagg returning clob.
package sqlgen
