package store

import (
	"errors"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
)

var ErrKeyNotFound = errors.New("key not found")

// Source resolves the crypto context of an entity.
type Source interface {
	CryptoContext(id string) (*slosilo.CryptoContext, error)
}
