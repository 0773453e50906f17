// Package pg provides the PostgreSQL connection pool, goose migrations and
// pgx error classification helpers shared by all store implementations.
package pg
