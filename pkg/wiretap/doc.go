// Package wiretap inspects captured MSL message headers.
//
// An Inspector decodes every token in a header with one crypto context and
// returns the header with each token envelope replaced by its decoded view:
//
//	{"mastertoken": {...}, "headerdata": {"useridtoken": {...}, ...}}
//
// The user ID token is checked against the master token of the key
// response data when one is present, and against the header master token
// otherwise. Error headers are passed through untouched.
//
// With RequireVerified set, a token whose signature does not verify fails
// the inspection with ErrUntrusted. Every decode is recorded in the audit
// log.
package wiretap
