package audit

import (
	"fmt"
	"strconv"
)

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func severity(success bool) Severity {
	if success {
		return SeverityInfo
	}
	return SeverityWarning
}

// TokenDecodeEvent records the decoding of one master token or user ID token
type TokenDecodeEvent struct {
	RequestID    string
	ClientIP     string
	Token        string // "mastertoken" or "useridtoken"
	KeyID        string
	SerialNumber int64
	Verified     bool
	Success      bool
	ErrorCode    string
	ErrorMessage string
}

func (e TokenDecodeEvent) MessageID() string {
	return "token-decode"
}

func (e TokenDecodeEvent) Message() string {
	if e.Success {
		trust := "unverified"
		if e.Verified {
			trust = "verified"
		}
		return fmt.Sprintf("decoded %s %s %d with key %s", trust, e.Token, e.SerialNumber, e.KeyID)
	}
	msg := fmt.Sprintf("failed to decode %s with key %s", e.Token, e.KeyID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e TokenDecodeEvent) Severity() Severity {
	if e.Success && !e.Verified {
		return SeverityNotice
	}
	return severity(e.Success)
}

func (e TokenDecodeEvent) Facility() int {
	return FacilityAuthPriv
}

func (e TokenDecodeEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDToken: {
			"kind":     e.Token,
			"verified": strconv.FormatBool(e.Verified),
		},
		SDIDKey: {
			"id": e.KeyID,
		},
		SDIDAction: {
			"operation": "decode",
			"result":    result(e.Success),
		},
	}
	if e.Success {
		sd[SDIDToken]["serialnumber"] = strconv.FormatInt(e.SerialNumber, 10)
	}
	if e.ErrorCode != "" {
		sd[SDIDAction]["error"] = e.ErrorCode
	}
	if e.RequestID != "" {
		sd[SDIDMessage] = map[string]string{"request": e.RequestID}
	}
	if e.ClientIP != "" {
		sd[SDIDClient] = map[string]string{"ip": e.ClientIP}
	}
	return sd
}

// InspectEvent records the inspection of one captured message
type InspectEvent struct {
	RequestID    string
	ClientIP     string
	Source       string // file name or "http"
	KeyID        string
	Tokens       int
	ErrorHeader  bool
	Success      bool
	ErrorMessage string
}

func (e InspectEvent) MessageID() string {
	return "inspect"
}

func (e InspectEvent) Message() string {
	if e.ErrorHeader {
		return fmt.Sprintf("inspected error message from %s", e.Source)
	}
	if e.Success {
		return fmt.Sprintf("inspected message from %s: %d tokens decoded", e.Source, e.Tokens)
	}
	msg := fmt.Sprintf("failed to inspect message from %s", e.Source)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e InspectEvent) Severity() Severity {
	return severity(e.Success)
}

func (e InspectEvent) Facility() int {
	return FacilityAuth
}

func (e InspectEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDMessage: {
			"source": e.Source,
			"tokens": strconv.Itoa(e.Tokens),
			"error":  strconv.FormatBool(e.ErrorHeader),
		},
		SDIDKey: {
			"id": e.KeyID,
		},
		SDIDAction: {
			"operation": "inspect",
			"result":    result(e.Success),
		},
	}
	if e.RequestID != "" {
		sd[SDIDMessage]["request"] = e.RequestID
	}
	if e.ClientIP != "" {
		sd[SDIDClient] = map[string]string{"ip": e.ClientIP}
	}
	return sd
}

// KeyEvent records a keystore change
type KeyEvent struct {
	KeyID        string
	Operation    string // "generate", "derive", "delete"
	Kind         string
	Fingerprint  string
	Success      bool
	ErrorMessage string
}

func (e KeyEvent) MessageID() string {
	return "key"
}

func (e KeyEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s key %s", pastTense(e.Operation), e.KeyID)
	}
	msg := fmt.Sprintf("failed to %s key %s", e.Operation, e.KeyID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func pastTense(op string) string {
	switch op {
	case "generate", "derive", "delete":
		return op + "d"
	default:
		return op
	}
}

func (e KeyEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityWarning
}

func (e KeyEvent) Facility() int {
	return FacilityAuthPriv
}

func (e KeyEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDKey: {
			"id": e.KeyID,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    result(e.Success),
		},
	}
	if e.Kind != "" {
		sd[SDIDKey]["kind"] = e.Kind
	}
	if e.Fingerprint != "" {
		sd[SDIDKey]["fingerprint"] = e.Fingerprint
	}
	return sd
}
