package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler is the single entry point each resource type is driven
// through: it dispatches on the lifecycle phase, awaits asynchronous
// control-plane tasks, and normalizes remote state into the output
// record. One Reconciler serves any number of resources; it holds no
// per-resource state.
type Reconciler struct {
	poller  *TaskPoller
	budgets Budgets
	logger  zerolog.Logger
	metrics PollMetrics
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerMetrics records wait durations and poll timeouts per
// operation class.
func WithReconcilerMetrics(m PollMetrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// NewReconciler creates a reconciler using the given poller. A zero
// Budgets value falls back to the reference budgets.
func NewReconciler(poller *TaskPoller, budgets Budgets, logger zerolog.Logger, opts ...ReconcilerOption) *Reconciler {
	if budgets == (Budgets{}) {
		budgets = DefaultBudgets()
	}
	r := &Reconciler{
		poller:  poller,
		budgets: budgets,
		logger:  logger.With().Str("component", "reconciler").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile performs one reconciliation call. Within the call the
// mutating operation always precedes the poll, which always precedes
// the normalize read; there is no reordering. A failed reconciliation
// returns a nil output so the orchestrator keeps its previous output
// untouched for the retry.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest, ops ProviderOps) (NormalizedOutput, error) {
	if err := req.Phase.Validate(); err != nil {
		return nil, NewRejectedError("invalid reconcile request", err).WithResource(req.ResourceID)
	}

	log := r.logger.With().
		Str("resource", req.ResourceID).
		Str("type", req.ResourceType).
		Str("phase", string(req.Phase)).
		Logger()

	switch req.Phase {
	case PhaseDelete:
		return r.reconcileDelete(ctx, req, ops, log)
	case PhaseCreate:
		return r.reconcileCreate(ctx, req, ops, log)
	case PhaseUpdate:
		return r.reconcileUpdate(ctx, req, ops, log)
	default:
		// Unreachable after Validate; keeps the switch exhaustive.
		return nil, NewRejectedError(fmt.Sprintf("unhandled phase %q", req.Phase), nil).
			WithResource(req.ResourceID)
	}
}

// reconcileDelete runs the idempotent teardown and returns the empty
// terminal output that tells the orchestrator to stop tracking the
// resource.
func (r *Reconciler) reconcileDelete(ctx context.Context, req ReconcileRequest, ops ProviderOps, log zerolog.Logger) (NormalizedOutput, error) {
	if !req.DeleteRequested {
		log.Info().Msg("teardown not requested, dropping resource from tracking only")
	}
	if err := DestroyIfPresent(ctx, ops.Delete, req.DeleteRequested); err != nil {
		return nil, r.annotate(err, req, "delete")
	}
	log.Info().Msg("teardown converged")
	return NormalizedOutput{}, nil
}

func (r *Reconciler) reconcileCreate(ctx context.Context, req ReconcileRequest, ops ProviderOps, log zerolog.Logger) (NormalizedOutput, error) {
	ack, err := ops.Create(ctx, req.DesiredConfig)
	if err != nil {
		return nil, r.annotate(err, req, "create")
	}
	if err := r.await(ctx, ack); err != nil {
		return nil, r.annotate(err, req, "create")
	}
	log.Debug().Msg("create mutation settled, normalizing")
	return r.readAndNormalize(ctx, req, ops)
}

func (r *Reconciler) reconcileUpdate(ctx context.Context, req ReconcileRequest, ops ProviderOps, log zerolog.Logger) (NormalizedOutput, error) {
	previous := req.PreviousOutput
	if previous == nil {
		// Orchestrator bug or crash-recovery gap: the remote object
		// presumably exists independently of local tracking, so
		// substitute defaults rather than dereferencing nothing.
		log.Warn().Msg("update without previous output, substituting defaults")
		previous = Normalize(nil, req.DesiredConfig, providerDefaults(ops))
	}

	ack, err := ops.Update(ctx, req.DesiredConfig, previous)
	switch {
	case errors.Is(err, ErrUpdateUnsupported):
		// Documented capability limit of the resource kind, not an
		// engine fault: degrade to a pure read.
		log.Warn().Msg("resource kind has no update endpoint, refreshing state only")
		ack = nil
	case err != nil:
		return nil, r.annotate(err, req, "update")
	}

	if err := r.await(ctx, ack); err != nil {
		return nil, r.annotate(err, req, "update")
	}
	return r.readAndNormalize(ctx, req, ops)
}

// await blocks until the acknowledged mutation's out-of-band work is
// finished. A nil ack or an ack with neither a task nor an idle scope
// means the mutation was synchronous. Timeout errors leave here
// carrying the awaited task handle and the budget that was in force.
func (r *Reconciler) await(ctx context.Context, ack *MutationAck) error {
	if ack == nil {
		return nil
	}
	budget := r.budgets.For(ack.Class)

	var err error
	start := time.Now()
	switch {
	case ack.Task != "":
		err = r.poller.WaitForTask(ctx, ack.Task, budget)
	case ack.IdleScope != nil:
		err = r.poller.WaitForIdle(ctx, *ack.IdleScope, budget)
	default:
		return nil
	}

	if err == nil {
		if r.metrics != nil {
			r.metrics.RecordTaskWait(string(ack.Class), time.Since(start))
		}
		return nil
	}

	var re *ReconcileError
	if errors.As(err, &re) && re.Class == ErrorClassTimeout {
		re.WithTask(string(ack.Task), budget)
		if r.metrics != nil {
			r.metrics.RecordPollTimeout(string(ack.Class))
		}
	}
	return err
}

func (r *Reconciler) readAndNormalize(ctx context.Context, req ReconcileRequest, ops ProviderOps) (NormalizedOutput, error) {
	snapshot, err := ops.Read(ctx)
	if err != nil {
		return nil, r.annotate(err, req, "read")
	}
	return Normalize(snapshot, req.DesiredConfig, providerDefaults(ops)), nil
}

// annotate attaches resource and operation context to classified
// errors and wraps everything else.
func (r *Reconciler) annotate(err error, req ReconcileRequest, operation string) error {
	var re *ReconcileError
	if errors.As(err, &re) {
		if re.Resource == "" {
			re.Resource = req.ResourceID
		}
		if re.Operation == "" {
			re.Operation = operation
		}
		return err
	}
	return fmt.Errorf("%s %s: %w", operation, req.ResourceID, err)
}

func providerDefaults(ops ProviderOps) ResourceConfig {
	if d, ok := ops.(Defaulter); ok {
		return d.Defaults()
	}
	return nil
}
