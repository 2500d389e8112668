// queue.go
//
// Redis-backed async login queue. QueuedRecorder implements Recorder and
// enqueues records instead of writing synchronously; StartWorker drains the
// queue in a background goroutine and hands each record to the inner Recorder
// (PostgresStore), keeping database latency off the login redirect.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MGallo-Code/keyhole/internal/store"
	"github.com/redis/go-redis/v9"
)

// QueueKey is the Redis list used as the login event queue.
const QueueKey = "keyhole:logins:queue"

// DefaultMaxQueueSize caps the queue when the database is down. 0 = unlimited.
const DefaultMaxQueueSize int64 = 10000

// ErrQueueFull is returned by RecordLogin when the queue has reached its size cap.
var ErrQueueFull = errors.New("login queue full")

// QueuedRecorder enqueues login records to Redis; StartWorker writes them to inner.
type QueuedRecorder struct {
	inner        Recorder
	rdb          *redis.Client
	maxQueueSize int64 // 0 = unlimited
}

// NewQueuedRecorder wraps inner with a Redis-backed async queue.
func NewQueuedRecorder(inner Recorder, rdb *redis.Client, maxSize int64) *QueuedRecorder {
	return &QueuedRecorder{inner: inner, rdb: rdb, maxQueueSize: maxSize}
}

// enqueueScript atomically checks the queue length and pushes only if under the cap.
// Returns 1 if enqueued, 0 if rejected.
// KEYS[1] = queue key, ARGV[1] = max size (0 = skip check), ARGV[2] = payload.
var enqueueScript = redis.NewScript(`
local max = tonumber(ARGV[1])
if max > 0 and redis.call('LLEN', KEYS[1]) >= max then
    return 0
end
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// RecordLogin serializes rec and appends it to the queue.
// Returns ErrQueueFull if the queue is at capacity.
func (q *QueuedRecorder) RecordLogin(ctx context.Context, rec store.LoginRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling login record: %w", err)
	}
	ok, err := enqueueScript.Run(ctx, q.rdb, []string{QueueKey}, q.maxQueueSize, data).Int64()
	if err != nil {
		return fmt.Errorf("enqueuing login record: %w", err)
	}
	if ok == 0 {
		return ErrQueueFull
	}
	return nil
}

// StartWorker drains the queue until ctx is cancelled. Call in a goroutine.
func (q *QueuedRecorder) StartWorker(ctx context.Context) {
	for {
		// BLPop blocks up to 2s then returns redis.Nil, keeping the loop
		// responsive to ctx cancellation without busy-spinning.
		res, err := q.rdb.BLPop(ctx, 2*time.Second, QueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			slog.Error("login worker: queue pop failed", "err", err)
			// Back off so a Redis outage doesn't spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// res[0] = key name, res[1] = payload
		q.dispatch(ctx, []byte(res[1]))
	}
}

// dispatch decodes one payload and hands it to inner.
// Errors are logged and dropped; there is no retry.
func (q *QueuedRecorder) dispatch(ctx context.Context, payload []byte) {
	var rec store.LoginRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		slog.Error("login worker: bad payload", "err", err)
		return
	}
	if err := q.inner.RecordLogin(ctx, rec); err != nil {
		slog.Error("login worker: record failed", "provider", rec.Provider, "subject", rec.Subject, "err", err)
	}
}
