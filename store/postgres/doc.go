// Package postgres is a PostgreSQL credential store over pgxpool.
//
// The users table schema ships as embedded goose migrations; [Runner] applies,
// reports and rolls them back. Email uniqueness is enforced by the database
// and surfaces from [Store.Create] as astaauth.ErrEmailTaken.
package postgres
