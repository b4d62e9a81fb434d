package tokens

import (
	"fmt"
	"strconv"
)

// validate checks ordering first, then ranges in declaration order, so the
// first failure reported is deterministic.
func validate(l layout, f rawFields) error {
	if f.expiration < f.renewalWindow {
		return newError(l.token, CodeExpiresBeforeRenew, KeyExpiration).
			withRaw(fmt.Sprintf("%s %d; %s %d", KeyRenewalWindow, f.renewalWindow, KeyExpiration, f.expiration))
	}

	ordinals := []struct {
		key   string
		value int64
	}{
		{l.ordinalKey, f.ordinal},
		{KeySerialNumber, f.serialNumber},
	}
	for _, o := range ordinals {
		if o.value < 0 || o.value > MaxLong {
			return newError(l.token, CodeOutOfRange, o.key).withRaw(strconv.FormatInt(o.value, 10))
		}
	}
	return nil
}
