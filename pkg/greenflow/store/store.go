package store

import (
	"context"
	"errors"

	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// AlertFilter selects alerts for listing
type AlertFilter struct {
	Limit          int
	Offset         int
	UnresolvedOnly bool
}

// Tx is a unit of work. Writes become visible to other readers only when
// the enclosing WithTx commits.
type Tx interface {
	// InsertEvent stores event and assigns its ID
	InsertEvent(ctx context.Context, event *types.PersistedEvent) error
	// InsertAlerts stores alerts and assigns their IDs
	InsertAlerts(ctx context.Context, alerts []types.Alert) error
	InsertQueryLog(ctx context.Context, entry *types.QueryLog) error
}

// Store persists events, alerts and query logs
type Store interface {
	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back on error or panic.
	WithTx(ctx context.Context, fn func(Tx) error) error

	GetEvent(ctx context.Context, id int64) (*types.PersistedEvent, error)
	ListEvents(ctx context.Context, limit, offset int) ([]types.PersistedEvent, error)
	// LatestEvent returns ErrNotFound when no event exists
	LatestEvent(ctx context.Context) (*types.PersistedEvent, error)
	// Summary aggregates events with timestamps at or after since
	Summary(ctx context.Context, since float64) (*types.Summary, error)

	ListAlerts(ctx context.Context, filter AlertFilter) ([]types.Alert, error)
	AlertsForEvent(ctx context.Context, eventID int64) ([]types.Alert, error)

	Ping(ctx context.Context) error
	Close() error
}
