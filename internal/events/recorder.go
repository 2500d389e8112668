// recorder.go
//
// Login recording. The auth handlers call Recorder after a session is
// established; PostgresStore is the durable implementation, QueuedRecorder
// makes it asynchronous, NopRecorder is used when no database is configured.
package events

import (
	"context"

	"github.com/MGallo-Code/keyhole/internal/store"
)

// Recorder persists a successful login.
type Recorder interface {
	RecordLogin(ctx context.Context, rec store.LoginRecord) error
}

// NopRecorder discards every login.
type NopRecorder struct{}

// RecordLogin does nothing.
func (NopRecorder) RecordLogin(context.Context, store.LoginRecord) error { return nil }
