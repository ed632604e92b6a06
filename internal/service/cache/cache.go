package cache

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrLockLost is returned by Unlock when the lock expired and now belongs to
// another holder, or no longer exists.
var ErrLockLost = errors.New("lock no longer held")

// BytesCache stores raw bytes with a TTL. A miss is (nil, false, nil).
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Locker is a lock shared between replicas. A held lock expires after ttl.
// TryLock hands out a token and Unlock releases the lock only for that token.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RefreshLockKey guards the scheduled forecast refresh.
const RefreshLockKey = "stockcast:lock:refresh"

// ForecastKey is the cache key of a forecast response.
func ForecastKey(ticker string, days int) string {
	return "stockcast:forecast:" + ticker + ":" + strconv.Itoa(days)
}
