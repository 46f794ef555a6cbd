package store

import "context"

// Store persists the dispatch log.
// All implementations must be safe for concurrent use.
type Store interface {
	AppendDispatch(ctx context.Context, d *DispatchRecord) error
	AppendInvocation(ctx context.Context, inv *InvocationRecord) error
	GetDispatch(ctx context.Context, id string) (*DispatchRecord, error)
	ListDispatches(ctx context.Context, filter DispatchFilter) ([]*DispatchRecord, error)
	ListInvocations(ctx context.Context, dispatchID string) ([]*InvocationRecord, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
