package tokens

import (
	"encoding/json"
	"time"
)

// UserIDToken is a decoded and validated user ID token.
type UserIDToken struct {
	Envelope                Envelope
	RenewalWindow           int64
	Expiration              int64
	MasterTokenSerialNumber int64
	SerialNumber            int64
	Verified                bool
	UserData                Tree
	// MasterToken is the token this user ID token was checked against.
	MasterToken *MasterToken

	tree Tree
}

// DecodeUserIDToken decodes a user ID token from its wire encoding and
// checks it is bound to mt.
func (d *Decoder) DecodeUserIDToken(data []byte, mt *MasterToken) (*UserIDToken, error) {
	wire, err := d.decodeWire(TokenUserIDToken, data)
	if err != nil {
		return nil, err
	}
	return d.ParseUserIDToken(wire, mt)
}

// ParseUserIDToken decodes a user ID token from an already parsed envelope.
// A nil mt always fails the master token binding check.
func (d *Decoder) ParseUserIDToken(wire Tree, mt *MasterToken) (*UserIDToken, error) {
	l := userIDTokenLayout

	env, err := decodeEnvelope(l.token, wire)
	if err != nil {
		return nil, err
	}

	verified := verifySignature(d.crypto, env)

	f, err := d.parseTokenData(l, env.TokenData)
	if err != nil {
		return nil, err
	}

	if err := validate(l, f); err != nil {
		return nil, err
	}

	// The binding only needs the cleartext serial number, so it is checked
	// before any user data is decrypted.
	if err := matchMasterToken(f.ordinal, mt); err != nil {
		return nil, err
	}

	userData, err := d.decryptPayload(l, f.ciphertext, verified)
	if err != nil {
		return nil, err
	}

	return &UserIDToken{
		Envelope:                env,
		RenewalWindow:           f.renewalWindow,
		Expiration:              f.expiration,
		MasterTokenSerialNumber: f.ordinal,
		SerialNumber:            f.serialNumber,
		Verified:                verified,
		UserData:                userData,
		MasterToken:             mt,
		tree:                    assemble(f.tree, l.cipherKey, userData),
	}, nil
}

// Tree returns a copy of the assembled view.
func (u *UserIDToken) Tree() Tree {
	return u.tree.Clone()
}

func (u *UserIDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.tree)
}

// IsDecrypted reports whether the user data was decrypted.
func (u *UserIDToken) IsDecrypted() bool {
	return u.UserData != nil
}

// Identity returns the user identity from the user data, if decrypted.
func (u *UserIDToken) Identity() string {
	id, _ := u.UserData.String("identity")
	return id
}

// IsBoundTo reports whether u belongs to mt.
func (u *UserIDToken) IsBoundTo(mt *MasterToken) bool {
	return mt != nil && mt.SerialNumber == u.MasterTokenSerialNumber
}

func (u *UserIDToken) IsRenewable(now time.Time) bool {
	return !time.Unix(u.RenewalWindow, 0).After(now)
}

func (u *UserIDToken) IsExpired(now time.Time) bool {
	return !time.Unix(u.Expiration, 0).After(now)
}
