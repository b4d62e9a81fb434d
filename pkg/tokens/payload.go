package tokens

// decryptPayload returns nil without error for unverified tokens. Payload
// parse errors never carry the plaintext, which holds key material.
func (d *Decoder) decryptPayload(l layout, ciphertext any, verified bool) (Tree, error) {
	if !verified {
		return nil, nil
	}

	ct, err := fieldBytes(l.token, Tree{l.cipherKey: ciphertext}, l.cipherKey)
	if err != nil {
		return nil, err
	}
	if len(ct) == 0 {
		return nil, newError(l.token, CodeCiphertextMissing, l.cipherKey)
	}

	plaintext, err := d.crypto.Decrypt(ct)
	if err != nil {
		return nil, newError(l.token, CodeDecryptFailed, l.cipherKey).wrap(err)
	}

	payload, err := d.codec.Decode(plaintext)
	if err != nil {
		return nil, newError(l.token, CodePayloadParse, l.cipherKey).wrap(err)
	}
	return payload, nil
}
