package tokens

//go:generate go run github.com/dmarkham/enumer -type Kind -trimprefix Kind -transform lower -json -output kind.gen.go

// Kind classifies a decode failure.
type Kind int

const (
	// KindEncoding covers malformed base64, missing or unparsable fields and
	// malformed decrypted payloads.
	KindEncoding Kind = iota
	// KindValidation covers ordering and range violations.
	KindValidation
	// KindCrypto covers decryption failures of a verified token.
	KindCrypto
	// KindMismatch covers a user ID token bound to the wrong master token.
	KindMismatch
)
