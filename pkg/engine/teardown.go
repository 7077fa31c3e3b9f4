package engine

import "context"

// DestroyIfPresent wraps a destructive call so that repeated or
// out-of-order delete reconciliations converge to a no-op. When
// deleteRequested is false the remote call is skipped entirely and the
// teardown reports success; the orchestrator simply stops tracking the
// resource. Otherwise the operation runs, and an absent target counts
// as success: the orchestrator has no transactional log of whether a
// previous delete landed, so calling this twice in a row must produce
// the same observable result both times.
func DestroyIfPresent(ctx context.Context, op func(context.Context) error, deleteRequested bool) error {
	if !deleteRequested {
		return nil
	}
	if err := op(ctx); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}
