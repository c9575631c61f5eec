package repositories

import "errors"

// ErrNotFound is returned by CredentialStore.Get for missing keys.
var ErrNotFound = errors.New("credential not found")

// Well-known credential keys.
const (
	KeyToken     = "token"
	KeyUserID    = "user_id"
	KeySessionID = "session_id"
)

// CredentialStore persists the client's local identifiers (bearer token,
// user id, session id). This is the only local persistence the client has.
type CredentialStore interface {
	Put(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	Close() error
}
