// Package audit records security-relevant wiretap activity.
//
// Events are written in RFC5424 syslog format to stdout and, when
// AUDIT_DATABASE_URL is set, persisted to the audit database.
//
// # Event Types
//
//   - TokenDecodeEvent: one master token or user ID token decoded
//   - InspectEvent: one captured message inspected
//   - KeyEvent: a keystore entry generated, derived or deleted
//
// # Usage
//
//	audit.Log(audit.TokenDecodeEvent{
//	    Token:    "mastertoken",
//	    KeyID:    "device-1",
//	    Verified: true,
//	    Success:  true,
//	})
//
// Audit can be turned off with WIRETAP_AUDIT_ENABLED=false.
package audit
