// Package server hosts the token inspection HTTP API. Routes are
// registered by the endpoints package; this package owns the router, the
// request logging and the middleware chain.
package server
