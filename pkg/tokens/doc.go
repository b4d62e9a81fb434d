// Package tokens decodes and verifies MSL master tokens and user ID tokens.
//
// A token arrives as an envelope holding a base64 signed token-data blob and
// a base64 signature. Decoding runs a fixed pipeline per token:
//
//	envelope -> signature check -> token-data parse -> field validation
//	         -> payload decryption (verified tokens only)
//	         -> master token binding (user ID tokens only) -> assembly
//
// The signature check never fails a decode. Its outcome is reported through
// the Verified field, and only verified tokens have their encrypted session
// or user data decrypted. Callers that require trusted tokens must check
// Verified themselves.
//
// # Basic Usage
//
//	dec := tokens.NewDecoder(cryptoContext)
//
//	mt, err := dec.DecodeMasterToken(rawMasterToken)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	uit, err := dec.DecodeUserIDToken(rawUserIDToken, mt)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, _ := json.Marshal(uit.Tree())
//
// # Errors
//
// Every failure is a *Error carrying a Kind (encoding, validation, crypto or
// mismatch), a Code, the token kind and the offending field. Sentinel values
// such as ErrExpiresBeforeRenewal match with errors.Is.
package tokens
