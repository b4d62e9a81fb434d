package tokens

import (
	"encoding/json"
	"time"
)

// sequenceWindow bounds how far apart two sequence numbers may be for the
// comparison in IsNewerThan to treat them as wrapped around MaxLong.
const sequenceWindow = 127

// MasterToken is a decoded and validated master token.
type MasterToken struct {
	Envelope       Envelope
	RenewalWindow  int64
	Expiration     int64
	SequenceNumber int64
	SerialNumber   int64
	// Verified is true when the token data signature checked out. Only
	// verified tokens have SessionData.
	Verified    bool
	SessionData Tree

	tree Tree
}

// DecodeMasterToken decodes a master token from its wire encoding.
func (d *Decoder) DecodeMasterToken(data []byte) (*MasterToken, error) {
	wire, err := d.decodeWire(TokenMasterToken, data)
	if err != nil {
		return nil, err
	}
	return d.ParseMasterToken(wire)
}

// ParseMasterToken decodes a master token from an already parsed envelope.
func (d *Decoder) ParseMasterToken(wire Tree) (*MasterToken, error) {
	l := masterTokenLayout

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

	sessionData, err := d.decryptPayload(l, f.ciphertext, verified)
	if err != nil {
		return nil, err
	}

	return &MasterToken{
		Envelope:       env,
		RenewalWindow:  f.renewalWindow,
		Expiration:     f.expiration,
		SequenceNumber: f.ordinal,
		SerialNumber:   f.serialNumber,
		Verified:       verified,
		SessionData:    sessionData,
		tree:           assemble(f.tree, l.cipherKey, sessionData),
	}, nil
}

// Tree returns a copy of the assembled view.
func (m *MasterToken) Tree() Tree {
	return m.tree.Clone()
}

func (m *MasterToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.tree)
}

// IsDecrypted reports whether the session data was decrypted.
func (m *MasterToken) IsDecrypted() bool {
	return m.SessionData != nil
}

// Identity returns the entity identity from the session data, if decrypted.
func (m *MasterToken) Identity() string {
	id, _ := m.SessionData.String("identity")
	return id
}

func (m *MasterToken) RenewalWindowTime() time.Time {
	return time.Unix(m.RenewalWindow, 0)
}

func (m *MasterToken) ExpirationTime() time.Time {
	return time.Unix(m.Expiration, 0)
}

// IsRenewable reports whether now is inside the renewal window.
func (m *MasterToken) IsRenewable(now time.Time) bool {
	return !m.RenewalWindowTime().After(now)
}

// IsExpired reports whether the token has expired at now.
func (m *MasterToken) IsExpired(now time.Time) bool {
	return !m.ExpirationTime().After(now)
}

// IsNewerThan reports whether m supersedes other. Sequence numbers wrap
// around at MaxLong; equal sequence numbers fall back to the expiration.
func (m *MasterToken) IsNewerThan(other *MasterToken) bool {
	if m.SequenceNumber == other.SequenceNumber {
		return m.Expiration > other.Expiration
	}
	if m.SequenceNumber > other.SequenceNumber {
		cutoff := m.SequenceNumber - MaxLong + sequenceWindow
		return other.SequenceNumber >= cutoff
	}
	cutoff := other.SequenceNumber - MaxLong + sequenceWindow
	return m.SequenceNumber < cutoff
}
