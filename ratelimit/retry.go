package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxWatchRetries bounds the optimistic-lock retry loop around a
// WATCH/MULTI/EXEC transaction. Ordinary contention on a hot key aborts the
// transaction with redis.TxFailedErr, which is not a counter-store failure —
// it is retried in place instead of being surfaced as upstream_unavailable.
const maxWatchRetries = 5

// watchWithRetry runs txf under Redis WATCH on key, retrying on
// redis.TxFailedErr for at most maxWatchRetries attempts in total. Any other
// error aborts immediately.
func watchWithRetry(ctx context.Context, rdb *redis.Client, txf func(*redis.Tx) error, key string) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = rdb.Watch(ctx, txf, key)
		if err == nil || err != redis.TxFailedErr {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return err
}
