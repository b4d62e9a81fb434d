package store

import (
	"encoding/base64"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
)

// FileEntry is one entity in a keys file. Exactly one of PSK,
// Encryption+HMAC or Encryption+SigningKey is set. Binary keys are base64.
type FileEntry struct {
	PSK        string `yaml:"psk,omitempty"`
	Encryption string `yaml:"encryption,omitempty"`
	HMAC       string `yaml:"hmac,omitempty"`
	SigningKey string `yaml:"signing_key,omitempty"`
}

type keysFile struct {
	Keys map[string]FileEntry `yaml:"keys"`
}

// FileKeyStore serves crypto contexts from a YAML keys file. All entries
// are parsed when the file is loaded.
type FileKeyStore struct {
	contexts map[string]*slosilo.CryptoContext
}

// LoadFileKeyStore reads a keys file:
//
//	keys:
//	  device-1:
//	    psk: <base64>
//	  device-2:
//	    encryption: <base64>
//	    hmac: <base64>
func LoadFileKeyStore(path string) (*FileKeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFileKeyStore(data)
}

func ParseFileKeyStore(data []byte) (*FileKeyStore, error) {
	var f keysFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("keys file: %w", err)
	}

	s := &FileKeyStore{contexts: make(map[string]*slosilo.CryptoContext, len(f.Keys))}
	for id, entry := range f.Keys {
		m, err := entry.material(id)
		if err != nil {
			return nil, fmt.Errorf("keys file entry %q: %w", id, err)
		}
		ctx, err := slosilo.NewCryptoContext(id, m)
		if err != nil {
			return nil, err
		}
		s.contexts[id] = ctx
	}
	return s, nil
}

func (e FileEntry) material(id string) (slosilo.KeyMaterial, error) {
	if e.PSK != "" {
		if e.Encryption != "" || e.HMAC != "" || e.SigningKey != "" {
			return slosilo.KeyMaterial{}, fmt.Errorf("psk cannot be combined with explicit keys")
		}
		psk, err := base64.StdEncoding.DecodeString(e.PSK)
		if err != nil {
			return slosilo.KeyMaterial{}, fmt.Errorf("psk: %w", err)
		}
		return slosilo.DeriveSessionKeys(psk, id)
	}

	var (
		m   slosilo.KeyMaterial
		err error
	)
	if m.Encryption, err = base64.StdEncoding.DecodeString(e.Encryption); err != nil {
		return m, fmt.Errorf("encryption: %w", err)
	}
	if e.HMAC != "" {
		if m.HMAC, err = base64.StdEncoding.DecodeString(e.HMAC); err != nil {
			return m, fmt.Errorf("hmac: %w", err)
		}
	}
	if e.SigningKey != "" {
		if m.Signing, err = slosilo.ParseKeyPEM([]byte(e.SigningKey)); err != nil {
			return m, fmt.Errorf("signing_key: %w", err)
		}
	}
	return m, nil
}

func (s *FileKeyStore) CryptoContext(id string) (*slosilo.CryptoContext, error) {
	ctx, ok := s.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return ctx, nil
}

// IDs returns the entity ids in the file, sorted.
func (s *FileKeyStore) IDs() []string {
	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
