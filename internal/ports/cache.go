package ports

import (
	"context"
	"time"
)

// Cache stores opaque serialized values with a TTL. Implementations must be
// safe for concurrent use. A miss is reported as ok == false, never as an
// error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
