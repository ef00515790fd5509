// Package database manages the PostgreSQL pool and schema behind the
// notification archive.
package database
