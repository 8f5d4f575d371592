// Package server is the HTTP surface of the authentication service, built
// on gin.
//
// Routes:
//
//	GET  /           welcome message
//	POST /login      form (username, password) or JSON (email, password)
//	POST /users      register an account
//	GET  /users      list accounts (bearer token required)
//	GET  /users/me   the calling identity (bearer token required)
//	GET  /metrics    Prometheus text exposition
//
// Error bodies have the shape {"detail": ...}. Every authentication failure
// renders the same body; the reason is logged, never returned.
package server
