package orchestrator

import (
	"context"
	"fmt"

	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/registry"
)

// Cancel terminates the job's running encoder. On success the job becomes
// Cancelled and a cancelled finished event is emitted at once, without waiting
// for the process to exit. It returns false, with no transition and no event,
// when the job has no live process. A backlogged job is dropped from the
// backlog and stays Queued.
func (o *Orchestrator) Cancel(ctx context.Context, id string) bool {
	unlock := o.locks.Lock(id)
	defer unlock()

	if o.dropFromBacklog(id) {
		o.jobLogger(id).Info("job removed from backlog")
		return false
	}
	return o.cancelLocked(ctx, id)
}

func (o *Orchestrator) cancelLocked(ctx context.Context, id string) bool {
	if !o.supervisor.Cancel(id) {
		return false
	}
	logger := o.jobLogger(id)
	if _, err := o.store.Transition(ctx, id, jobs.StatusCancelled, registry.Fields{}); err != nil {
		logging.ErrorWithContext(logger, "record cancellation failed", "job_transition_failed", logging.Error(err))
		return true
	}
	o.hub.Publish(events.Finished(id, events.OutcomeCancelled, 0, ""))
	logger.Info("encode cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
	return true
}

// Remove cancels the job if it is running and deletes it from the registry.
func (o *Orchestrator) Remove(ctx context.Context, id string) error {
	unlock := o.locks.Lock(id)
	defer unlock()

	o.dropFromBacklog(id)
	o.cancelLocked(ctx, id)
	removed, err := o.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if !removed {
		return fmt.Errorf("remove %s: %w", id, registry.ErrNotFound)
	}
	o.jobLogger(id).Info("job removed")
	return nil
}
