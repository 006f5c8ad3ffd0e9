// Package queryir provides the query intermediate representation (IR)
// shared by the SPARQL-subset parser, the SQL compiler and the binding
// layer.
//
// ARCHITECTURE:
//
//	[query text]  → sparql.ParseQuery  → [Select]  → querysql → SQLite
//	[generators]  → generator.Compile  ↗
//	[attr deltas] → mutation           → [Update]  → store.Execute
//
// The binding layer never builds query strings for the store; it builds IR
// values. Text is only an input format (parsed by package sparql) and an
// output format for logs and the CLI (String methods).
//
// SEALED INTERFACES:
//
// Query, Term and Statement are sealed with marker methods so that the
// compiler and the store can switch over them exhaustively:
//
//	switch st := stmt.(type) {
//	case *InsertData:
//	case *DeleteData:
//	case *DeleteProperties:
//	case *Modify:
//	case *Unlink:
//	case *Rename:
//	}
//
// FRAGMENT:
//
// A Select is a basic graph pattern (a conjunction of triple patterns) with
// optional projection, ORDER BY, LIMIT and OFFSET. There are no FILTERs,
// OPTIONALs, UNIONs or aggregates. Update statements operate on ground
// triples, except DeleteProperties, Modify, Unlink and Rename, which name a
// node and let the store find the affected triples.
package queryir
