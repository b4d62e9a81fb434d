package tokens

import (
	"errors"
	"fmt"
	"strings"
)

// TokenKind names the token a decode error belongs to.
type TokenKind string

const (
	TokenMasterToken TokenKind = "mastertoken"
	TokenUserIDToken TokenKind = "useridtoken"
)

// Code identifies the specific failure within a Kind.
type Code string

const (
	CodeEnvelopeParse      Code = "envelope_parse_error"
	CodeMissingField       Code = "missing_field"
	CodeInvalidBase64      Code = "invalid_base64"
	CodeTokenDataMissing   Code = "tokendata_missing"
	CodeTokenDataParse     Code = "tokendata_parse_error"
	CodeCiphertextMissing  Code = "ciphertext_missing"
	CodePayloadParse       Code = "payload_parse_error"
	CodeExpiresBeforeRenew Code = "expires_before_renewal"
	CodeOutOfRange         Code = "out_of_range"
	CodeDecryptFailed      Code = "decrypt_failed"
	CodeSerialMismatch     Code = "mastertoken_serial_mismatch"
)

var codeKinds = map[Code]Kind{
	CodeEnvelopeParse:      KindEncoding,
	CodeMissingField:       KindEncoding,
	CodeInvalidBase64:      KindEncoding,
	CodeTokenDataMissing:   KindEncoding,
	CodeTokenDataParse:     KindEncoding,
	CodeCiphertextMissing:  KindEncoding,
	CodePayloadParse:       KindEncoding,
	CodeExpiresBeforeRenew: KindValidation,
	CodeOutOfRange:         KindValidation,
	CodeDecryptFailed:      KindCrypto,
	CodeSerialMismatch:     KindMismatch,
}

// Kind returns the error kind a code belongs to.
func (c Code) Kind() Kind {
	return codeKinds[c]
}

// Error is the single error type returned by the decode pipeline.
type Error struct {
	Kind  Kind
	Code  Code
	Token TokenKind
	// Field is the wire key the failure relates to, if any.
	Field string
	// Raw holds the offending input (token data, payload plaintext or the
	// mismatching serial numbers) for diagnostics.
	Raw string
	Err error
}

func newError(token TokenKind, code Code, field string) *Error {
	return &Error{Kind: code.Kind(), Code: code, Token: token, Field: field}
}

func (e *Error) withRaw(raw string) *Error {
	e.Raw = raw
	return e
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Token != "" {
		sb.WriteString(string(e.Token))
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s error: %s", e.Kind, e.Code)
	if e.Field != "" {
		fmt.Fprintf(&sb, " (%s)", e.Field)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code. Token and Field are compared only when
// set on the target, so sentinels match any token or field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	if t.Token != "" && t.Token != e.Token {
		return false
	}
	if t.Field != "" && t.Field != e.Field {
		return false
	}
	return true
}

// Sentinels for errors.Is.
var (
	ErrEnvelopeParse        = &Error{Kind: KindEncoding, Code: CodeEnvelopeParse}
	ErrMissingField         = &Error{Kind: KindEncoding, Code: CodeMissingField}
	ErrInvalidBase64        = &Error{Kind: KindEncoding, Code: CodeInvalidBase64}
	ErrTokenDataMissing     = &Error{Kind: KindEncoding, Code: CodeTokenDataMissing}
	ErrTokenDataParse       = &Error{Kind: KindEncoding, Code: CodeTokenDataParse}
	ErrCiphertextMissing    = &Error{Kind: KindEncoding, Code: CodeCiphertextMissing}
	ErrPayloadParse         = &Error{Kind: KindEncoding, Code: CodePayloadParse}
	ErrExpiresBeforeRenewal = &Error{Kind: KindValidation, Code: CodeExpiresBeforeRenew}
	ErrOutOfRange           = &Error{Kind: KindValidation, Code: CodeOutOfRange}
	ErrDecryptFailed        = &Error{Kind: KindCrypto, Code: CodeDecryptFailed}
	ErrSerialMismatch       = &Error{Kind: KindMismatch, Code: CodeSerialMismatch}
)

// OutOfRange returns a sentinel matching an out-of-range error on field.
func OutOfRange(field string) error {
	return &Error{Kind: KindValidation, Code: CodeOutOfRange, Field: field}
}

// KindOf reports the kind of a pipeline error. ok is false for errors that
// did not come from the pipeline.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
