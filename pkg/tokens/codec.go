package tokens

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts between bytes and structured trees. The same codec is used
// for envelopes, token data and decrypted payloads.
type Codec interface {
	Name() string
	Decode(data []byte) (Tree, error)
	Encode(tree Tree) ([]byte, error)
}

var errNotAnObject = errors.New("not an object")

// JSONCodec is the text tree encoding. Numbers are kept as json.Number so
// cleartext fields survive a decode/encode round trip verbatim.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Decode(data []byte) (Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree Tree
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errNotAnObject
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errors.New("unexpected data after top-level object")
	}
	return tree, nil
}

func (JSONCodec) Encode(tree Tree) ([]byte, error) {
	return json.Marshal(tree)
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error

	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("tokens: CBOR encoder initialization failed: " + err.Error())
	}

	cborDecMode, err = cbor.DecOptions{
		// Nested objects must decode to string-keyed maps so they render
		// as JSON and satisfy Tree.Object.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("tokens: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORCodec is the binary tree encoding. Envelope fields may be CBOR text
// strings holding base64 or CBOR byte strings holding the raw bytes.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Decode(data []byte) (Tree, error) {
	var tree Tree
	if err := cborDecMode.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errNotAnObject
	}
	return tree, nil
}

func (CBORCodec) Encode(tree Tree) ([]byte, error) {
	return cborEncMode.Marshal(tree)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, errors.New("unknown codec: " + name)
	}
}
