// Package compiler provides the public API for generating SQL and result
// types from a query group.
//
// This is a thin wrapper around internal/generator that exposes only the
// types and functions needed by external consumers. For rendering result
// types as source code, use pkg/clientgen.
package compiler

import (
	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/internal/sqlgen"
)

// Result holds the outcome of every query of a group.
type Result = generator.Result

// QueryResult is the outcome of generating one query.
type QueryResult = generator.QueryResult

// Option configures Generate.
type Option = generator.Option

// ResultTypes is the tree of object types describing a query's output.
type ResultTypes = resulttype.Tree

// Dialect renders the JSON constructs of one database.
type Dialect = sqlgen.Dialect

// Generate generates SQL and result types for every query of a group.
var Generate = generator.Generate

// WithWorkers bounds the number of queries generated concurrently.
var WithWorkers = generator.WithWorkers

// WithLogger sets the logger for progress and per-query failures.
var WithLogger = generator.WithLogger

// WithDialect selects the SQL dialect by name.
var WithDialect = generator.WithDialect

// WithQueries restricts generation to the named queries.
var WithQueries = generator.WithQueries

// DialectByName returns the dialect for a DBMS name such as "PostgreSQL".
var DialectByName = sqlgen.DialectByName
