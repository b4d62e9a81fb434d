package store

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
)

var ErrBadFingerprint = errors.New("key has bad stored fingerprint")

// KeyStore keeps crypto context key material in the database, encrypted
// with the data key. Loaded crypto contexts are cached by id.
type KeyStore struct {
	db     *gorm.DB
	cipher slosilo.SymmetricCipher

	mu       sync.RWMutex
	contexts map[string]*slosilo.CryptoContext
}

func NewKeyStore(db *gorm.DB, dataKey []byte) (*KeyStore, error) {
	cipher, err := slosilo.NewSymmetric(dataKey)
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}

	return &KeyStore{
		db:       db,
		cipher:   cipher,
		contexts: map[string]*slosilo.CryptoContext{},
	}, nil
}

// Put stores key material under id.
func (k *KeyStore) Put(id string, m slosilo.KeyMaterial) error {
	if err := m.Validate(); err != nil {
		return err
	}

	encrypted, err := k.cipher.Encrypt([]byte(id), m.Serialize())
	if err != nil {
		return err
	}

	stored := StoredKey{
		ID:          id,
		Kind:        string(m.Kind()),
		Fingerprint: m.Fingerprint(),
		Key:         encrypted,
	}
	if err := k.db.Create(&stored).Error; err != nil {
		return err
	}

	k.forget(id)
	return nil
}

// Get loads and decrypts the key material stored under id.
func (k *KeyStore) Get(id string) (slosilo.KeyMaterial, error) {
	var stored StoredKey
	err := k.db.Where("id = ?", id).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return slosilo.KeyMaterial{}, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	if err != nil {
		return slosilo.KeyMaterial{}, err
	}

	plaintext, err := k.cipher.Decrypt([]byte(stored.ID), stored.Key)
	if err != nil {
		return slosilo.KeyMaterial{}, fmt.Errorf("key %s: %w", id, err)
	}

	m, err := slosilo.ParseKeyMaterial(slosilo.KeyKind(stored.Kind), plaintext)
	if err != nil {
		return slosilo.KeyMaterial{}, fmt.Errorf("key %s: %w", id, err)
	}

	if m.Fingerprint() != stored.Fingerprint {
		return slosilo.KeyMaterial{}, fmt.Errorf("key %s: %w", id, ErrBadFingerprint)
	}

	return m, nil
}

// CryptoContext returns the cached crypto context for id, loading it on
// first use.
func (k *KeyStore) CryptoContext(id string) (*slosilo.CryptoContext, error) {
	k.mu.RLock()
	ctx, ok := k.contexts[id]
	k.mu.RUnlock()
	if ok {
		return ctx, nil
	}

	m, err := k.Get(id)
	if err != nil {
		return nil, err
	}
	ctx, err = slosilo.NewCryptoContext(id, m)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.contexts[id] = ctx
	k.mu.Unlock()

	return ctx, nil
}

// List returns the stored keys ordered by id, without key material.
func (k *KeyStore) List() ([]StoredKey, error) {
	var keys []StoredKey
	if err := k.db.Select("id", "kind", "fingerprint").Order("id").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes the key stored under id.
func (k *KeyStore) Delete(id string) error {
	k.forget(id)

	tx := k.db.Where("id = ?", id).Delete(&StoredKey{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return nil
}

func (k *KeyStore) forget(id string) {
	k.mu.Lock()
	delete(k.contexts, id)
	k.mu.Unlock()
}
