// Command sqljson generates SQL queries that return nested JSON, together
// with result type declarations, from query definitions and database
// metadata.
//
// Commands:
//   - generate: write SQL and result types for every query
//   - validate: check that every query generates, without writing files
//   - introspect: write a metadata snapshot from a live PostgreSQL database
//   - doctor: check the project setup and snapshot drift
//   - init: create a sqljson.yaml interactively
//   - config show: print the effective configuration
//   - version: print version information
//
// Only introspect and doctor need database access.
package main

func main() {
	Execute()
}
