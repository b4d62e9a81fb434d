package wiretap

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
)

// Message header keys.
const (
	KeyMasterToken     = "mastertoken"
	KeyHeaderData      = "headerdata"
	KeyErrorData       = "errordata"
	KeyKeyResponseData = "keyresponsedata"
	KeyUserIDToken     = "useridtoken"
)

var (
	// ErrUntrusted is returned for tokens that fail signature verification
	// when verified tokens are required.
	ErrUntrusted = errors.New("token signature not verified")
	// ErrTooLarge is returned for input above the maximum message size.
	ErrTooLarge = errors.New("message exceeds maximum size")
	// ErrMalformedHeader is returned when a header key holds the wrong type.
	ErrMalformedHeader = errors.New("malformed message header")
)

// Options configures an Inspector.
type Options struct {
	// KeyID names the crypto context in audit events.
	KeyID           string
	RequireVerified bool
	// MaxMessageSize bounds input in bytes. Zero means no bound.
	MaxMessageSize int
	Codec          tokens.Codec
}

// Origin describes where an inspected message came from.
type Origin struct {
	RequestID string
	ClientIP  string
	// Source is a file name, "http" or "stdin".
	Source string
}

// Inspector decodes the tokens of captured messages. It is safe for
// concurrent use.
type Inspector struct {
	decoder *tokens.Decoder
	opts    Options
}

func NewInspector(crypto tokens.CryptoContext, opts Options) *Inspector {
	if opts.Codec == nil {
		opts.Codec = tokens.JSONCodec{}
	}
	return &Inspector{
		decoder: tokens.NewDecoder(crypto, tokens.WithCodec(opts.Codec)),
		opts:    opts,
	}
}

// FromConfig builds an Inspector for the configured key id, resolving its
// crypto context through source.
func FromConfig(cfg *config.WiretapConfig, source store.Source) (*Inspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.KeyID == "" {
		return nil, errors.New("key_id is required")
	}

	codec, err := tokens.CodecByName(cfg.Format)
	if err != nil {
		return nil, err
	}

	crypto, err := source.CryptoContext(cfg.KeyID)
	if err != nil {
		return nil, fmt.Errorf("crypto context %s: %w", cfg.KeyID, err)
	}

	return NewInspector(crypto, Options{
		KeyID:           cfg.KeyID,
		RequireVerified: cfg.RequireVerified,
		MaxMessageSize:  cfg.MaxMessageSize,
		Codec:           codec,
	}), nil
}

func (i *Inspector) Codec() tokens.Codec {
	return i.opts.Codec
}

func (i *Inspector) checkSize(data []byte) error {
	if i.opts.MaxMessageSize > 0 && len(data) > i.opts.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), i.opts.MaxMessageSize)
	}
	return nil
}

func (i *Inspector) decodeTree(data []byte) (tokens.Tree, error) {
	if err := i.checkSize(data); err != nil {
		return nil, err
	}
	tree, err := i.opts.Codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return tree, nil
}

func withRequestID(origin Origin) Origin {
	if origin.RequestID == "" {
		origin.RequestID = uuid.NewString()
	}
	return origin
}

// Inspect decodes a captured message header.
func (i *Inspector) Inspect(data []byte, origin Origin) (*Report, error) {
	origin = withRequestID(origin)

	header, err := i.decodeTree(data)
	if err != nil {
		i.auditInspect(origin, nil, err)
		return nil, err
	}
	return i.InspectHeader(header, origin)
}

// InspectHeader decodes an already parsed message header.
func (i *Inspector) InspectHeader(header tokens.Tree, origin Origin) (*Report, error) {
	origin = withRequestID(origin)

	report, err := i.inspect(header, origin)
	i.auditInspect(origin, report, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (i *Inspector) inspect(header tokens.Tree, origin Origin) (*Report, error) {
	report := &Report{RequestID: origin.RequestID, Header: header.Clone()}

	if header.Has(KeyErrorData) {
		report.ErrorHeader = true
		return report, nil
	}

	var err error
	if header.Has(KeyMasterToken) {
		wire, ok := header.Object(KeyMasterToken)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedHeader, KeyMasterToken)
		}
		if report.MasterToken, err = i.masterToken(wire, origin); err != nil {
			return nil, err
		}
		report.Header[KeyMasterToken] = report.MasterToken.Tree()
	}

	headerData, ok := header.Object(KeyHeaderData)
	if !ok {
		// Encrypted or absent header data carries no tokens we can reach.
		return report, nil
	}
	headerData = headerData.Clone()

	bindTo := report.MasterToken
	if keyResponse, ok := headerData.Object(KeyKeyResponseData); ok && keyResponse.Has(KeyMasterToken) {
		wire, ok := keyResponse.Object(KeyMasterToken)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is not an object", ErrMalformedHeader, KeyKeyResponseData, KeyMasterToken)
		}
		if report.KeyResponseMasterToken, err = i.masterToken(wire, origin); err != nil {
			return nil, err
		}
		keyResponse[KeyMasterToken] = report.KeyResponseMasterToken.Tree()
		bindTo = report.KeyResponseMasterToken
	}

	if headerData.Has(KeyUserIDToken) {
		wire, ok := headerData.Object(KeyUserIDToken)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedHeader, KeyUserIDToken)
		}
		if report.UserIDToken, err = i.userIDToken(wire, bindTo, origin); err != nil {
			return nil, err
		}
		headerData[KeyUserIDToken] = report.UserIDToken.Tree()
	}

	report.Header[KeyHeaderData] = headerData
	return report, nil
}

// MasterToken decodes a single master token envelope.
func (i *Inspector) MasterToken(data []byte, origin Origin) (*tokens.MasterToken, error) {
	origin = withRequestID(origin)

	if err := i.checkSize(data); err != nil {
		return nil, err
	}
	mt, err := i.decoder.DecodeMasterToken(data)
	return i.checkMasterToken(mt, err, origin)
}

// UserIDToken decodes a user ID token together with the master token it
// is bound to. data holds both envelopes:
//
//	{"mastertoken": {...}, "useridtoken": {...}}
func (i *Inspector) UserIDToken(data []byte, origin Origin) (*tokens.UserIDToken, error) {
	origin = withRequestID(origin)

	pair, err := i.decodeTree(data)
	if err != nil {
		return nil, err
	}

	mtWire, ok := pair.Object(KeyMasterToken)
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrMalformedHeader, KeyMasterToken)
	}
	uitWire, ok := pair.Object(KeyUserIDToken)
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrMalformedHeader, KeyUserIDToken)
	}

	mt, err := i.masterToken(mtWire, origin)
	if err != nil {
		return nil, err
	}
	return i.userIDToken(uitWire, mt, origin)
}

func (i *Inspector) masterToken(wire tokens.Tree, origin Origin) (*tokens.MasterToken, error) {
	mt, err := i.decoder.ParseMasterToken(wire)
	return i.checkMasterToken(mt, err, origin)
}

func (i *Inspector) checkMasterToken(mt *tokens.MasterToken, err error, origin Origin) (*tokens.MasterToken, error) {
	if err == nil {
		err = i.checkTrust(tokens.TokenMasterToken, mt.Verified)
	}

	event := audit.TokenDecodeEvent{Token: string(tokens.TokenMasterToken)}
	if mt != nil {
		event.SerialNumber, event.Verified = mt.SerialNumber, mt.Verified
	}
	i.auditDecode(event, origin, err)

	if err != nil {
		return nil, err
	}
	return mt, nil
}

func (i *Inspector) userIDToken(wire tokens.Tree, mt *tokens.MasterToken, origin Origin) (*tokens.UserIDToken, error) {
	uit, err := i.decoder.ParseUserIDToken(wire, mt)
	if err == nil {
		err = i.checkTrust(tokens.TokenUserIDToken, uit.Verified)
	}

	event := audit.TokenDecodeEvent{Token: string(tokens.TokenUserIDToken)}
	if uit != nil {
		event.SerialNumber, event.Verified = uit.SerialNumber, uit.Verified
	}
	i.auditDecode(event, origin, err)

	if err != nil {
		return nil, err
	}
	return uit, nil
}

func (i *Inspector) checkTrust(token tokens.TokenKind, verified bool) error {
	if i.opts.RequireVerified && !verified {
		return fmt.Errorf("%w: %s", ErrUntrusted, token)
	}
	return nil
}

func (i *Inspector) auditDecode(event audit.TokenDecodeEvent, origin Origin, err error) {
	event.RequestID = origin.RequestID
	event.ClientIP = origin.ClientIP
	event.KeyID = i.opts.KeyID
	event.Success = err == nil
	if err != nil {
		event.ErrorMessage = err.Error()
		event.ErrorCode = ErrorCode(err)
	}
	audit.Log(event)
}

func (i *Inspector) auditInspect(origin Origin, report *Report, err error) {
	event := audit.InspectEvent{
		RequestID: origin.RequestID,
		ClientIP:  origin.ClientIP,
		Source:    origin.Source,
		KeyID:     i.opts.KeyID,
		Success:   err == nil,
	}
	if report != nil {
		event.Tokens = report.Tokens()
		event.ErrorHeader = report.ErrorHeader
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	audit.Log(event)
}

// ErrorCode names err for audit events and API responses.
func ErrorCode(err error) string {
	var tokErr *tokens.Error
	switch {
	case errors.As(err, &tokErr):
		return string(tokErr.Code)
	case errors.Is(err, ErrUntrusted):
		return "untrusted"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	default:
		return ""
	}
}
