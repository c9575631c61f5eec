package localstore

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/repositories"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)

	if err := store.Put(repositories.KeyToken, "jwt-123"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(repositories.KeyToken)
	if err != nil {
		t.Fatal(err)
	}
	if got != "jwt-123" {
		t.Errorf("value = %q", got)
	}

	// Overwrite wins.
	if err := store.Put(repositories.KeyToken, "jwt-456"); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get(repositories.KeyToken)
	if err != nil {
		t.Fatal(err)
	}
	if got != "jwt-456" {
		t.Errorf("value after overwrite = %q", got)
	}
}

func TestStore_MissingKey(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Get("absent"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t)

	if err := store.Put(repositories.KeyUserID, "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(repositories.KeyUserID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(repositories.KeyUserID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete("absent"); err != nil {
		t.Errorf("delete absent: %v", err)
	}
}
