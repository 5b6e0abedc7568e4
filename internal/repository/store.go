package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConflict is returned when an optimistic transaction kept losing races.
var ErrConflict = errors.New("repository: too many concurrent updates")

// TxFunc computes the next value of a key from its current value. current is
// nil when the key does not exist. Returning nil bytes leaves the key
// untouched; returning an error aborts the transaction and the error is
// passed back to the caller of Transact unchanged. A TxFunc must not call
// back into the store.
type TxFunc func(current []byte) (next []byte, err error)

// Store is the durable key/value store shared by every process instance.
// Transact is the only read-modify-write primitive: implementations run the
// read, fn and the write atomically with respect to other callers.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Transact(ctx context.Context, key string, fn TxFunc) error
}

// TransactJSON runs fn on the decoded value of key inside a transaction and
// stores the result. exists reports whether the key was present.
func TransactJSON[T any](ctx context.Context, s Store, key string, fn func(v *T, exists bool) error) (T, error) {
	var out T
	err := s.Transact(ctx, key, func(cur []byte) ([]byte, error) {
		var v T
		exists := cur != nil
		if exists {
			if err := json.Unmarshal(cur, &v); err != nil {
				return nil, fmt.Errorf("decode %q: %w", key, err)
			}
		}
		if err := fn(&v, exists); err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		out = v
		return b, nil
	})
	return out, err
}

// Durable key layout.
func StateKey(userID string) string       { return "coordination/state/" + userID }
func PreferencesKey(userID string) string { return "coordination/preferences/" + userID }
func ThrottleKey(userID string) string    { return "notificationThrottle/" + userID }
func CronExecutionKey(iso string) string  { return "cronExecutions/" + iso }

func RateLimitKey(userID, bucket string) string {
	return "rateLimits/" + userID + "/" + bucket
}
