// Package slosilo provides the cryptography behind token inspection.
//
// A CryptoContext holds the keys of one MSL entity: an AES-256-GCM cipher for
// session and user data, and either an HMAC-SHA256 key or an RSA key for
// token data signatures. It satisfies tokens.CryptoContext.
//
// # Key Material
//
// Session keys are generated at random or derived from a pre-shared key:
//
//	keys, err := slosilo.DeriveSessionKeys(psk, "device-1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, err := slosilo.NewCryptoContext("device-1", keys)
//
// # Symmetric Encryption
//
// The SymmetricCipher interface also protects key material at rest:
//
//	cipher, err := slosilo.NewSymmetric(dataKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Encrypt with associated data for authentication
//	ciphertext, err := cipher.Encrypt([]byte("device-1"), material)
//
//	// Decrypt
//	plaintext, err := cipher.Decrypt([]byte("device-1"), ciphertext)
package slosilo
