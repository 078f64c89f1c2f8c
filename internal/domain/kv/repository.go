package kv

import "context"

// Store is a durable string-keyed, string-valued store scoped to one profile.
// Set overwrites any previous value wholesale.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
