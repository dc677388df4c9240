// Package predicate compiles predicate expressions to parameterized SQL
// over stored object properties.
//
// The language is deliberately small: comparisons between a property and
// a literal, string operators (CONTAINS, BEGINSWITH, ENDSWITH), boolean
// combinators (AND/OR/NOT, also && || !), parentheses, TRUEPREDICATE and
// FALSEPREDICATE, plus trailing SORT(...), DISTINCT(...) and LIMIT(...)
// clauses. Callers outside this package treat expressions as opaque text.
//
// Values are NEVER interpolated into the generated SQL - every literal
// travels as a bind parameter, and property names travel as json_extract
// path parameters.
package predicate
