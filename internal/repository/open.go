package repository

import (
	"fmt"
	"path/filepath"
)

// OpenOptions selects and configures a storage backend.
type OpenOptions struct {
	Backend       string
	Dir           string
	MaxValueBytes int64
}

// Open returns the KeyValueStore named by opts.Backend. The file backend
// stores values directly in Dir; the sqlite backend uses Dir/cardvault.db.
func Open(opts OpenOptions) (KeyValueStore, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFilesystemKeyValueStore(opts.Dir, opts.MaxValueBytes), nil
	case BackendSQLite:
		return NewSQLiteKeyValueStore(filepath.Join(opts.Dir, "cardvault.db"), opts.MaxValueBytes)
	case BackendMemory:
		return NewInMemoryKeyValueStore(opts.MaxValueBytes), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
