// Package store is the SQLite reference store that validated queries run
// against.
//
// The schema is generated from the entity model:
//   - one table per entity type, with an INTEGER primary key
//   - one column per attribute; TimeInterval attributes get a start and an
//     end column
//   - foreign key columns for to-one navigation
//   - link tables for many-to-many navigation
//
// # Storage conventions
//
// DateTime values and interval bounds are stored as Unix milliseconds,
// Object and Geometry values as JSON text. The SQL compiler binds filter
// literals the same way, so comparisons happen on the stored form.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// # Fetching
//
// Fetch runs one statement for the requested entities and one statement per
// expand per parent entity. Expands through JSON documents are resolved by
// validation but not materialized.
package store
