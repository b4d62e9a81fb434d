// Package endpoints registers the HTTP routes of the inspection API.
//
// Failed requests answer with a JSON error body:
//
//	{"error": {"kind": "validation", "code": "out_of_range", "token": "mastertoken", "field": "expiration", "message": "..."}}
//
// Decode failures are 422, untrusted tokens 403, oversized bodies 413 and
// malformed headers 400.
package endpoints
