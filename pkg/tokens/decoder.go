package tokens

// Decoder runs the decode pipeline with an injected crypto context. A Decoder
// holds no mutable state and may be shared between goroutines as long as its
// crypto context is safe for concurrent use.
type Decoder struct {
	crypto CryptoContext
	codec  Codec
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithCodec selects the tree encoding. The default is JSON.
func WithCodec(codec Codec) Option {
	return func(d *Decoder) {
		d.codec = codec
	}
}

// NewDecoder returns a Decoder that verifies and decrypts with crypto.
func NewDecoder(crypto CryptoContext, opts ...Option) *Decoder {
	d := &Decoder{
		crypto: crypto,
		codec:  JSONCodec{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Codec returns the decoder's tree encoding.
func (d *Decoder) Codec() Codec {
	return d.codec
}

func (d *Decoder) decodeWire(token TokenKind, data []byte) (Tree, error) {
	wire, err := d.codec.Decode(data)
	if err != nil {
		return nil, newError(token, CodeEnvelopeParse, "").withRaw(rawText(data)).wrap(err)
	}
	return wire, nil
}
