package domain

import "context"

// Persisted keys. Session-scoped keys live in the session store, the active
// file keys in the durable store.
const (
	KeyToken          = "token"
	KeyUser           = "user"
	KeyActiveFileID   = "activeFileId"
	KeyActiveFileName = "activeFileName"
)

// Storage is the port for a string key/value store. Get reports ok=false for
// a missing key. Delete of a missing key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
