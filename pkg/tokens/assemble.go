package tokens

// assemble builds a new view from the token data: every cleartext key is
// copied, and the ciphertext key is either replaced by the decrypted payload
// or dropped.
func assemble(tokenData Tree, cipherKey string, payload Tree) Tree {
	out := make(Tree, len(tokenData))
	for k, v := range tokenData {
		if k == cipherKey {
			continue
		}
		out[k] = cloneValue(v)
	}
	if payload != nil {
		out[cipherKey] = payload.Clone()
	}
	return out
}
