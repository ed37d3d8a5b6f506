package durable

import "errors"

// ErrQuotaExceeded is returned by a Store when a write does not fit in the
// remaining capacity of the backing storage.
var ErrQuotaExceeded = errors.New("durable store quota exceeded")

// Store is the persistence capability the query cache mirrors into.
// Get reports ok=false with a nil error when the key is absent.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key string, value string) error
	Remove(key string) error
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
