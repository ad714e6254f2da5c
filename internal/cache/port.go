package cache

// Store is the port behind the TTL cache.
// It stores opaque string values by key and knows nothing about expiry; the TTL
// layer owns serialization and staleness.
type Store interface {
	// Get returns the value and true if the key exists. A stored value that cannot
	// be read back returns an error with ErrCauseCorruptEntry.
	Get(key string) (string, bool, error)

	// Put stores value under key, overwriting any previous value.
	Put(key string, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists every stored key in no particular order.
	Keys() ([]string, error)
}

// corruptSweeper is implemented by stores that can hold documents whose key is
// unrecoverable, so Keys cannot report them.
type corruptSweeper interface {
	PurgeCorrupt() (int, error)
}
