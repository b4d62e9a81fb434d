package store

// StoredKey is a row of the keystore. Key holds the serialized key material
// encrypted with the data key, with the id as authenticated data.
type StoredKey struct {
	ID          string `gorm:"column:id;primaryKey"`
	Kind        string
	Fingerprint string
	Key         []byte
}

func (StoredKey) TableName() string {
	return "msl_keystore"
}
