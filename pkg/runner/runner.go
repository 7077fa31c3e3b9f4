package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openhyve/openhyve/pkg/config"
	"github.com/openhyve/openhyve/pkg/engine"
	"github.com/openhyve/openhyve/pkg/policy"
	"github.com/openhyve/openhyve/pkg/providers"
	"github.com/openhyve/openhyve/pkg/proxmox"
	"github.com/openhyve/openhyve/pkg/stores"
	"github.com/openhyve/openhyve/pkg/telemetry"
)

// Options configures a Runner.
type Options struct {
	// Manifest is the desired cluster state.
	Manifest *config.Manifest

	// ManifestPath is recorded on runs for traceability.
	ManifestPath string

	// Store persists runs, reconciliations, outputs, and events.
	Store stores.Store

	// Client is the control-plane API client.
	Client *proxmox.Client

	// Registry resolves resource types to providers.
	Registry *providers.Registry

	// Policy gates destructive teardowns. Optional.
	Policy *policy.Engine

	// Telemetry carries logging, metrics, tracing, and events.
	Telemetry *telemetry.Telemetry

	// Timeouts holds the poll interval and per-class budgets. Nil
	// falls back to the environment-derived defaults.
	Timeouts *config.Timeouts

	// MaxParallel bounds concurrent reconciliations. Defaults to 4.
	MaxParallel int
}

// Runner drives reconciliation runs over a manifest: it determines the
// phase per resource from stored state, dispatches each resource
// through the engine behind a bounded worker pool, and persists
// outputs and history.
type Runner struct {
	manifest     *config.Manifest
	manifestPath string
	store        stores.Store
	client       *proxmox.Client
	registry     *providers.Registry
	policy       *policy.Engine
	tel          *telemetry.Telemetry
	reconciler   *engine.Reconciler
	logger       zerolog.Logger
	maxParallel  int

	// locks serializes reconciliations of the same resource identity.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Runner from options.
func New(opts Options) (*Runner, error) {
	if opts.Manifest == nil {
		return nil, fmt.Errorf("manifest is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}

	timeouts := opts.Timeouts
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}

	logger := opts.Telemetry.Logger.NewComponentLogger("runner").Zerolog()

	poller := engine.NewTaskPoller(opts.Client, opts.Client, timeouts.PollInterval, logger,
		engine.WithPollerMetrics(opts.Telemetry.Metrics))
	reconciler := engine.NewReconciler(poller, timeouts.Budgets(), logger,
		engine.WithReconcilerMetrics(opts.Telemetry.Metrics))

	return &Runner{
		manifest:     opts.Manifest,
		manifestPath: opts.ManifestPath,
		store:        opts.Store,
		client:       opts.Client,
		registry:     opts.Registry,
		policy:       opts.Policy,
		tel:          opts.Telemetry,
		reconciler:   reconciler,
		logger:       logger,
		maxParallel:  maxParallel,
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// Apply reconciles every manifest resource toward its desired state.
func (r *Runner) Apply(ctx context.Context) (*RunResult, error) {
	return r.run(ctx, "apply")
}

// Destroy runs delete-phase reconciliation for every manifest resource.
func (r *Runner) Destroy(ctx context.Context) (*RunResult, error) {
	return r.run(ctx, "destroy")
}

// run executes one apply or destroy run.
func (r *Runner) run(ctx context.Context, runPhase string) (*RunResult, error) {
	runID := uuid.New().String()

	run := &stores.Run{
		ID:           runID,
		ManifestPath: r.manifestPath,
		Phase:        runPhase,
		Status:       stores.RunStatusRunning,
		StartedAt:    time.Now(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	ctx = r.tel.WithContext(ctx)
	ctx = telemetry.WithRunContext(ctx, runID, runPhase)
	_ = r.tel.Events.PublishRunStarted(runID, runPhase)

	r.logger.Info().
		Str("run_id", runID).
		Str("phase", runPhase).
		Int("resources", len(r.manifest.Resources)).
		Msg("Run started")

	start := time.Now()
	results := r.dispatch(ctx, runID, runPhase)

	result := &RunResult{
		RunID:    runID,
		Phase:    runPhase,
		Results:  results,
		Duration: time.Since(start),
	}
	for _, res := range results {
		result.Summary.Total++
		switch res.Status {
		case stores.ReconcileStatusSucceeded:
			result.Summary.Succeeded++
		case stores.ReconcileStatusSkipped:
			result.Summary.Skipped++
		default:
			result.Summary.Failed++
		}
	}

	runStatus := stores.RunStatusCompleted
	var runErr *string
	if result.Summary.Failed > 0 {
		runStatus = stores.RunStatusFailed
		msg := fmt.Sprintf("%d of %d reconciliations failed", result.Summary.Failed, result.Summary.Total)
		runErr = &msg
	}
	if err := r.store.UpdateRunStatus(ctx, runID, runStatus, runErr); err != nil {
		return result, fmt.Errorf("failed to update run status: %w", err)
	}

	if runStatus == stores.RunStatusCompleted {
		telemetry.EndRunContext(ctx, runID, string(runStatus), nil)
		_ = r.tel.Events.PublishRunCompleted(runID, string(runStatus), result.Duration)
	} else {
		telemetry.EndRunContext(ctx, runID, string(runStatus), errors.New(*runErr))
		_ = r.tel.Events.PublishRunFailed(runID, *runErr)
	}

	r.logger.Info().
		Str("run_id", runID).
		Str("status", string(runStatus)).
		Int("succeeded", result.Summary.Succeeded).
		Int("failed", result.Summary.Failed).
		Int("skipped", result.Summary.Skipped).
		Dur("duration", result.Duration).
		Msg("Run finished")

	return result, nil
}

// dispatch fans manifest resources out over a bounded worker pool.
func (r *Runner) dispatch(ctx context.Context, runID, runPhase string) []ResourceResult {
	specs := r.manifest.Resources

	workerCount := r.maxParallel
	if len(specs) < workerCount {
		workerCount = len(specs)
	}

	workQueue := make(chan int, len(specs))
	for i := range specs {
		workQueue <- i
	}
	close(workQueue)

	results := make([]ResourceResult, len(specs))

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workQueue {
				select {
				case <-ctx.Done():
					results[i] = ResourceResult{
						ResourceID: specs[i].ID,
						Status:     stores.ReconcileStatusFailed,
						Error:      ctx.Err().Error(),
					}
					continue
				default:
				}
				results[i] = r.reconcileResource(ctx, runID, runPhase, &specs[i])
			}
		}()
	}
	wg.Wait()

	return results
}

// reconcileResource runs one resource through the engine and persists
// the result.
func (r *Runner) reconcileResource(ctx context.Context, runID, runPhase string, spec *config.ResourceSpec) ResourceResult {
	lock := r.lockFor(spec.ID)
	lock.Lock()
	defer lock.Unlock()

	log := r.logger.With().
		Str("run_id", runID).
		Str("resource_id", spec.ID).
		Str("resource_type", spec.Type).
		Logger()

	def, err := r.registry.Lookup(spec.Type)
	if err != nil {
		return r.recordFailure(ctx, runID, runPhase, spec, "", err)
	}

	previous, prevErr := r.loadPreviousOutput(ctx, spec.ID)
	if prevErr != nil {
		return r.recordFailure(ctx, runID, runPhase, spec, "", prevErr)
	}

	phase := r.determinePhase(runPhase, previous)
	deleteRequested := def.TeardownDefault
	if spec.DeleteRequested != nil {
		deleteRequested = *spec.DeleteRequested
	}

	// Policy gate on destructive deletes. Deletes without teardown
	// opt-in never touch the remote object, so they bypass the gate.
	if phase == engine.PhaseDelete && deleteRequested && r.policy != nil && r.manifest.Policies.IsEnabled() {
		verdict, policyErr := r.policy.EvaluateTeardown(ctx, &policy.TeardownInput{
			Resource: &policy.TeardownResource{
				ID:              spec.ID,
				Type:            spec.Type,
				Node:            spec.Node,
				DeleteRequested: deleteRequested,
				TeardownDefault: def.TeardownDefault,
				Config:          spec.EngineConfig(),
			},
			Output: previous,
			Context: &policy.EvalContext{
				Environment: r.manifest.Environment,
			},
		})
		if policyErr != nil {
			return r.recordFailure(ctx, runID, runPhase, spec, string(phase), policyErr)
		}
		for _, w := range verdict.Warnings {
			log.Warn().Str("policy", w.Policy).Msg(w.Message)
			_ = r.tel.Events.PublishPolicyViolation(spec.ID, w.Policy, w.Message)
		}
		if !verdict.Allowed {
			return r.recordSkip(ctx, runID, spec, string(phase), verdict.Reason())
		}
	}

	recID := uuid.New().String()
	rec := &stores.Reconciliation{
		ID:           recID,
		RunID:        runID,
		ResourceID:   spec.ID,
		ResourceType: spec.Type,
		Phase:        string(phase),
		Status:       stores.ReconcileStatusRunning,
	}
	if err := r.store.CreateReconciliation(ctx, rec); err != nil {
		return r.recordFailure(ctx, runID, runPhase, spec, string(phase), err)
	}

	ctx = telemetry.WithReconcileContext(ctx, runID, spec.ID, spec.Type, string(phase))
	_ = r.tel.Events.PublishReconcileStarted(runID, spec.ID, string(phase))
	log.Info().Str("phase", string(phase)).Msg("Reconciling resource")

	start := time.Now()

	ops, err := def.New(r.client, spec.Node, spec.EngineConfig())
	var output engine.NormalizedOutput
	if err == nil {
		output, err = r.reconciler.Reconcile(ctx, engine.ReconcileRequest{
			Phase:           phase,
			ResourceID:      spec.ID,
			ResourceType:    spec.Type,
			DesiredConfig:   spec.EngineConfig(),
			PreviousOutput:  previous,
			DeleteRequested: deleteRequested,
		}, ops)
	}
	duration := time.Since(start)

	if err != nil {
		class := errorClassOf(err)
		r.finishReconciliation(ctx, recID, stores.ReconcileStatusFailed, err, class, duration)
		telemetry.EndReconcileContext(ctx, runID, spec.ID, spec.Type, string(phase), "failed", err)
		r.tel.Metrics.RecordError(class)
		_ = r.tel.Events.PublishReconcileFailed(runID, spec.ID, string(phase), class, err.Error())
		var rerr *engine.ReconcileError
		if errors.As(err, &rerr) && rerr.Class == engine.ErrorClassTimeout {
			_ = r.tel.Events.PublishTaskTimeout(runID, spec.ID, rerr.Task, rerr.Budget)
		}
		r.appendEvent(ctx, runID, spec.ID, stores.EventLevelError,
			fmt.Sprintf("Reconciliation failed: %v", err))
		log.Error().Err(err).Str("phase", string(phase)).Str("error_class", class).Msg("Reconciliation failed")

		return ResourceResult{
			ResourceID: spec.ID,
			Phase:      string(phase),
			Status:     stores.ReconcileStatusFailed,
			Error:      err.Error(),
			ErrorClass: class,
			Duration:   duration,
		}
	}

	if persistErr := r.persistOutput(ctx, runID, spec, output); persistErr != nil {
		r.finishReconciliation(ctx, recID, stores.ReconcileStatusFailed, persistErr, "", duration)
		telemetry.EndReconcileContext(ctx, runID, spec.ID, spec.Type, string(phase), "failed", persistErr)
		return ResourceResult{
			ResourceID: spec.ID,
			Phase:      string(phase),
			Status:     stores.ReconcileStatusFailed,
			Error:      persistErr.Error(),
			Duration:   duration,
		}
	}

	r.finishReconciliation(ctx, recID, stores.ReconcileStatusSucceeded, nil, "", duration)
	telemetry.EndReconcileContext(ctx, runID, spec.ID, spec.Type, string(phase), "succeeded", nil)
	_ = r.tel.Events.PublishReconcileCompleted(runID, spec.ID, string(phase), duration)
	r.appendEvent(ctx, runID, spec.ID, stores.EventLevelInfo,
		fmt.Sprintf("Reconciliation succeeded (%s)", phase))
	log.Info().Str("phase", string(phase)).Dur("duration", duration).Msg("Reconciliation succeeded")

	return ResourceResult{
		ResourceID: spec.ID,
		Phase:      string(phase),
		Status:     stores.ReconcileStatusSucceeded,
		Duration:   duration,
	}
}

// determinePhase maps a run phase and stored state to the lifecycle
// phase: destroy always deletes; apply creates when no output is
// stored and updates otherwise.
func (r *Runner) determinePhase(runPhase string, previous engine.NormalizedOutput) engine.Phase {
	if runPhase == "destroy" {
		return engine.PhaseDelete
	}
	if previous == nil {
		return engine.PhaseCreate
	}
	return engine.PhaseUpdate
}

// loadPreviousOutput fetches and decodes the stored output, if any.
func (r *Runner) loadPreviousOutput(ctx context.Context, resourceID string) (engine.NormalizedOutput, error) {
	stored, err := r.store.GetOutput(ctx, resourceID)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load stored output for %s: %w", resourceID, err)
	}

	var out engine.NormalizedOutput
	if err := json.Unmarshal([]byte(stored.Output), &out); err != nil {
		return nil, fmt.Errorf("failed to decode stored output for %s: %w", resourceID, err)
	}
	return out, nil
}

// persistOutput stores the normalized output, or stops tracking the
// resource when the output is terminal.
func (r *Runner) persistOutput(ctx context.Context, runID string, spec *config.ResourceSpec, output engine.NormalizedOutput) error {
	if output.IsTerminal() {
		if err := r.store.DeleteOutput(ctx, spec.ID); err != nil {
			return fmt.Errorf("failed to delete stored output for %s: %w", spec.ID, err)
		}
		return nil
	}

	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode output for %s: %w", spec.ID, err)
	}

	if err := r.store.UpsertOutput(ctx, &stores.Output{
		ResourceID:   spec.ID,
		ResourceType: spec.Type,
		Output:       string(data),
		LastRunID:    runID,
	}); err != nil {
		return fmt.Errorf("failed to store output for %s: %w", spec.ID, err)
	}
	return nil
}

// recordSkip records a policy-skipped teardown. The remote object and
// the stored output are left untouched.
func (r *Runner) recordSkip(ctx context.Context, runID string, spec *config.ResourceSpec, phase, reason string) ResourceResult {
	recID := uuid.New().String()
	rec := &stores.Reconciliation{
		ID:           recID,
		RunID:        runID,
		ResourceID:   spec.ID,
		ResourceType: spec.Type,
		Phase:        phase,
		Status:       stores.ReconcileStatusSkipped,
	}
	if err := r.store.CreateReconciliation(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("resource_id", spec.ID).Msg("Failed to record skipped reconciliation")
	} else {
		r.finishReconciliation(ctx, recID, stores.ReconcileStatusSkipped, nil, "", 0)
	}

	_ = r.tel.Events.PublishTeardownSkipped(runID, spec.ID, reason)
	r.appendEvent(ctx, runID, spec.ID, stores.EventLevelWarning,
		fmt.Sprintf("Teardown skipped: %s", reason))
	r.logger.Warn().
		Str("run_id", runID).
		Str("resource_id", spec.ID).
		Str("reason", reason).
		Msg("Teardown skipped by policy")

	return ResourceResult{
		ResourceID: spec.ID,
		Phase:      phase,
		Status:     stores.ReconcileStatusSkipped,
		Error:      reason,
	}
}

// recordFailure records a reconciliation that failed before the engine
// was ever invoked.
func (r *Runner) recordFailure(ctx context.Context, runID, runPhase string, spec *config.ResourceSpec, phase string, err error) ResourceResult {
	if phase == "" {
		phase = runPhase
		if runPhase == "destroy" {
			phase = string(engine.PhaseDelete)
		}
	}

	recID := uuid.New().String()
	rec := &stores.Reconciliation{
		ID:           recID,
		RunID:        runID,
		ResourceID:   spec.ID,
		ResourceType: spec.Type,
		Phase:        phase,
		Status:       stores.ReconcileStatusFailed,
	}
	if createErr := r.store.CreateReconciliation(ctx, rec); createErr != nil {
		r.logger.Error().Err(createErr).Str("resource_id", spec.ID).Msg("Failed to record failed reconciliation")
	} else {
		r.finishReconciliation(ctx, recID, stores.ReconcileStatusFailed, err, errorClassOf(err), 0)
	}

	class := errorClassOf(err)
	r.tel.Metrics.RecordError(class)
	_ = r.tel.Events.PublishReconcileFailed(runID, spec.ID, phase, class, err.Error())
	r.appendEvent(ctx, runID, spec.ID, stores.EventLevelError,
		fmt.Sprintf("Reconciliation failed: %v", err))
	r.logger.Error().Err(err).
		Str("run_id", runID).
		Str("resource_id", spec.ID).
		Msg("Reconciliation failed")

	return ResourceResult{
		ResourceID: spec.ID,
		Phase:      phase,
		Status:     stores.ReconcileStatusFailed,
		Error:      err.Error(),
		ErrorClass: class,
	}
}

// finishReconciliation writes the terminal reconciliation row.
func (r *Runner) finishReconciliation(ctx context.Context, recID string, status stores.ReconcileStatus, err error, class string, duration time.Duration) {
	var errMsg, errClass *string
	if err != nil {
		msg := err.Error()
		errMsg = &msg
	}
	if class != "" {
		errClass = &class
	}
	if updateErr := r.store.UpdateReconciliation(ctx, recID, status, nil, errMsg, errClass, duration.Milliseconds()); updateErr != nil {
		r.logger.Error().Err(updateErr).Str("reconciliation_id", recID).Msg("Failed to update reconciliation")
	}
}

// appendEvent writes to the store's append-only event log.
func (r *Runner) appendEvent(ctx context.Context, runID, resourceID string, level stores.EventLevel, message string) {
	event := &stores.Event{
		RunID:      &runID,
		ResourceID: &resourceID,
		Level:      level,
		Message:    message,
		Timestamp:  time.Now(),
	}
	if err := r.store.AppendEvent(ctx, event); err != nil {
		r.logger.Error().Err(err).Msg("Failed to append event")
	}
}

// lockFor returns the identity lock for a resource.
func (r *Runner) lockFor(resourceID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[resourceID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[resourceID] = lock
	}
	return lock
}

// errorClassOf extracts the engine error class, if any.
func errorClassOf(err error) string {
	var rerr *engine.ReconcileError
	if errors.As(err, &rerr) {
		return string(rerr.Class)
	}
	return "unknown"
}
