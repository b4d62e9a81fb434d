package tokens

// layout describes the kind-specific keys of a token's data.
type layout struct {
	token      TokenKind
	ordinalKey string
	cipherKey  string
}

var (
	masterTokenLayout = layout{token: TokenMasterToken, ordinalKey: KeySequenceNumber, cipherKey: KeySessionData}
	userIDTokenLayout = layout{token: TokenUserIDToken, ordinalKey: KeyMasterTokenSerialNumber, cipherKey: KeyUserData}
)

// rawFields holds the token data as parsed, before validation.
type rawFields struct {
	renewalWindow int64
	expiration    int64
	// ordinal is the sequence number of a master token or the master token
	// serial number of a user ID token.
	ordinal      int64
	serialNumber int64
	ciphertext   any
	tree         Tree
}

func (d *Decoder) parseTokenData(l layout, data []byte) (rawFields, error) {
	tree, err := d.codec.Decode(data)
	if err != nil {
		return rawFields{}, newError(l.token, CodeTokenDataParse, KeyTokenData).withRaw(rawText(data)).wrap(err)
	}

	f := rawFields{tree: tree}
	numeric := []struct {
		key string
		dst *int64
	}{
		{KeyRenewalWindow, &f.renewalWindow},
		{KeyExpiration, &f.expiration},
		{l.ordinalKey, &f.ordinal},
		{KeySerialNumber, &f.serialNumber},
	}
	for _, n := range numeric {
		v, err := tree.Int64(n.key)
		if err != nil {
			return rawFields{}, newError(l.token, CodeTokenDataParse, n.key).withRaw(rawText(data)).wrap(err)
		}
		*n.dst = v
	}

	switch c := tree[l.cipherKey].(type) {
	case string, []byte:
		f.ciphertext = c
	case nil:
		return rawFields{}, newError(l.token, CodeTokenDataParse, l.cipherKey).withRaw(rawText(data)).wrap(errFieldAbsent)
	default:
		return rawFields{}, newError(l.token, CodeTokenDataParse, l.cipherKey).withRaw(rawText(data)).wrap(errNotAString)
	}

	return f, nil
}
