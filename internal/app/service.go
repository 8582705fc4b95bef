// Package service wires the store, log source, validator, queue and worker
// pool into the operations exposed by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tiergate/internal/adapters/logsource"
	eventqueue "github.com/okian/tiergate/internal/adapters/mq/queue"
	workerpool "github.com/okian/tiergate/internal/adapters/mq/worker"
	"github.com/okian/tiergate/internal/adapters/repository"
	"github.com/okian/tiergate/internal/domain/account"
	"github.com/okian/tiergate/internal/domain/dedupe"
	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/history"
	"github.com/okian/tiergate/internal/domain/mechanics"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/internal/domain/performance"
	"github.com/okian/tiergate/internal/domain/pool"
	"github.com/okian/tiergate/internal/domain/validation"
	"github.com/okian/tiergate/internal/rules"
	"github.com/okian/tiergate/pkg/logger"
	"github.com/okian/tiergate/pkg/metrics"
)

// LogSource retrieves the parsed log behind a permalink.
type LogSource interface {
	Fetch(ctx context.Context, logURL string) (*model.EncounterRecord, error)
}

// Validation stages reported in metrics and error messages.
const (
	stageLoad     = "load"
	stageFetch    = "fetch"
	stageAssign   = "assign_pool"
	stageValidate = "validate"
	stageSave     = "save"
)

// Service implements the API dependencies of the validation service.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store  repository.Store
	source LogSource
	pack   *rules.Pack

	// Built on Start
	classifier *pool.Classifier
	validator  *validation.Validator
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	workers    *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	minGameBuild   int
	perfConfig     performance.Config
	debugMechanics bool
	resumePending  bool

	started bool
	cancel  context.CancelFunc
	now     func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the submission store. The caller owns and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogSource sets where logs are fetched from.
func WithLogSource(src LogSource) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithRules sets the boss table and mechanic rules.
func WithRules(pack *rules.Pack) Option {
	return func(s *Service) {
		if pack != nil {
			s.pack = pack
		}
	}
}

// WithPerformanceConfig sets the performance thresholds.
func WithPerformanceConfig(cfg performance.Config) Option {
	return func(s *Service) {
		s.perfConfig = cfg
	}
}

// WithMinGameBuild rejects logs recorded before the given game build.
func WithMinGameBuild(build int) Option {
	return func(s *Service) {
		s.minGameBuild = build
	}
}

// WithWorkerCount sets the number of validation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the validation queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the in-flight guard.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDebugMechanics runs queued validations with mechanic debug output.
func WithDebugMechanics(debug bool) Option {
	return func(s *Service) {
		s.debugMechanics = debug
	}
}

// WithResumePending controls whether Start queues stored submissions that
// are still pending without a verdict. Enabled by default.
func WithResumePending(enabled bool) Option {
	return func(s *Service) {
		s.resumePending = enabled
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. Without options it uses an in-memory store, the
// public log host and the embedded rule pack.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     1000,
		dedupeSize:    10000,
		perfConfig:    performance.DefaultConfig(),
		resumePending: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.source == nil {
		s.source = logsource.NewClient()
	}
	return s
}

// Start builds the evaluators and starts the worker pool. The workers run
// until Stop, independent of ctx. Pending submissions left without a verdict
// by a previous run are queued again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.pack == nil {
		pack, err := rules.Default()
		if err != nil {
			return fmt.Errorf("load default rules: %w", err)
		}
		s.pack = pack
	}

	s.classifier = pool.NewClassifier(s.pack.Bosses, pool.WithLabels(s.pack.Labels))
	s.validator = validation.New(
		validation.WithTracker(history.NewTracker(
			history.WithMinGameBuild(s.minGameBuild),
			history.WithLabeler(s.classifier),
		)),
		validation.WithPerformance(performance.NewEvaluator(
			performance.WithConfig(s.perfConfig),
			performance.WithBosses(s.classifier),
		)),
		validation.WithMechanics(mechanics.NewEvaluator(s.pack.Mechanics)),
		validation.WithTotalBossCount(s.pack.TotalBossCount()),
	)

	var backlog []model.Submission
	if s.resumePending {
		var err error
		if backlog, err = s.store.ListUnvalidated(ctx); err != nil {
			return fmt.Errorf("list unvalidated submissions: %w", err)
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workers = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.Process))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workers.Start(runCtx)
	s.resume(ctx, backlog)

	s.started = true
	s.logger.Info(ctx, "validation service started",
		logger.Int("workers", s.workers.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("bosses", len(s.pack.Bosses)),
		logger.Int("mechanics", len(s.pack.Mechanics)),
	)
	return nil
}

// resume queues submissions that were accepted but never validated.
func (s *Service) resume(ctx context.Context, backlog []model.Submission) {
	var queued, rejected int
	for _, sub := range backlog {
		key := dedupe.Key(sub.SubmitterID, sub.LogURL)
		s.deduper.SeenAndRecord(ctx, key)
		if s.queue.Enqueue(ctx, model.Job{SubmissionID: sub.ID, EnqueuedAt: s.now()}) {
			queued++
			continue
		}
		rejected++
		s.deduper.Unrecord(ctx, key)
		if err := s.store.SaveVerdict(ctx, sub.ID, model.StatusError, ErrBackpressure.Error(), nil); err != nil {
			s.logger.Error(ctx, "failed to mark rejected submission", logger.String("id", sub.ID), logger.Error(err))
		}
	}
	if len(backlog) > 0 {
		s.logger.Info(ctx, "resumed pending submissions",
			logger.Int("queued", queued),
			logger.Int("rejected", rejected),
		)
	}
}

// Stop closes the queue and waits for the workers to finish queued jobs.
// Jobs still running when ctx expires are canceled and marked as errored;
// jobs never started stay pending and are resumed by the next Start.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping validation service...")
	err := s.workers.Shutdown(ctx)
	s.cancel()
	s.started = false
	s.logger.Info(ctx, "validation service stopped")
	return err
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Submit stores a new pending submission and queues it for validation.
func (s *Service) Submit(ctx context.Context, req model.SubmissionRequest) (model.Submission, error) {
	if !s.running() {
		return model.Submission{}, ErrNotStarted
	}
	req.AccountName = strings.TrimSpace(req.AccountName)
	req.LogURL = strings.TrimSpace(req.LogURL)
	if err := checkRequest(req); err != nil {
		return model.Submission{}, err
	}

	key := dedupe.Key(req.SubmitterID, req.LogURL)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSubmissionDuplicate()
		return model.Submission{}, fmt.Errorf("%w: %s", ErrInFlight, req.LogURL)
	}

	now := s.now()
	sub := model.Submission{
		ID:          uuid.NewString(),
		SubmitterID: req.SubmitterID,
		AccountName: req.AccountName,
		Tier:        req.Tier,
		Role:        req.Role,
		LogURL:      req.LogURL,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		s.deduper.Unrecord(ctx, key)
		return model.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	metrics.RecordSubmissionReceived()

	if !s.queue.Enqueue(ctx, model.Job{SubmissionID: sub.ID, EnqueuedAt: now}) {
		s.deduper.Unrecord(ctx, key)
		if err := s.store.SaveVerdict(ctx, sub.ID, model.StatusError, ErrBackpressure.Error(), nil); err != nil {
			s.logger.Error(ctx, "failed to mark rejected submission", logger.String("id", sub.ID), logger.Error(err))
		}
		return model.Submission{}, ErrBackpressure
	}

	s.logger.Debug(ctx, "submission queued",
		logger.String("id", sub.ID),
		logger.String("submitter", sub.SubmitterID),
		logger.Int("tier", sub.Tier),
	)
	return sub, nil
}

func checkRequest(req model.SubmissionRequest) error {
	var missing []string
	if strings.TrimSpace(req.SubmitterID) == "" {
		missing = append(missing, "submitter_id")
	}
	if strings.TrimSpace(req.AccountName) == "" {
		missing = append(missing, "account_name")
	}
	if strings.TrimSpace(req.LogURL) == "" {
		missing = append(missing, "log_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSubmission, strings.Join(missing, ", "))
	}
	if req.Tier < 1 || req.Tier > 3 {
		return fmt.Errorf("%w: tier %d", ErrInvalidSubmission, req.Tier)
	}
	return nil
}

// Process validates one queued submission and stores the verdict. A verdict
// at ERROR denies the submission; anything else leaves it pending review.
func (s *Service) Process(ctx context.Context, job model.Job) error {
	start := time.Now()

	sub, err := s.store.Get(ctx, job.SubmissionID)
	if err != nil {
		metrics.RecordValidationError(stageLoad)
		return fmt.Errorf("%s: %w", stageLoad, err)
	}
	defer s.deduper.Unrecord(ctx, dedupe.Key(sub.SubmitterID, sub.LogURL))

	verdict, stage, err := s.evaluate(ctx, sub, s.debugMechanics, "")
	if err != nil {
		return s.fail(ctx, sub.ID, stage, err)
	}

	status, message := model.StatusPending, ""
	if verdict.Severity() == feedback.Error {
		status, message = model.StatusDenied, firstError(verdict)
	}
	if err := s.store.SaveVerdict(ctx, sub.ID, status, message, verdict); err != nil {
		return s.fail(ctx, sub.ID, stageSave, err)
	}

	metrics.RecordVerdict(verdict.Severity().String())
	metrics.RecordValidationLatency(float64(time.Since(start).Milliseconds()))
	s.logger.Info(ctx, "submission validated",
		logger.String("id", sub.ID),
		logger.String("severity", verdict.Severity().String()),
		logger.String("status", string(status)),
	)
	return nil
}

// evaluate fetches the log, assigns the pool and runs the checks. On error it
// also names the stage that failed.
func (s *Service) evaluate(ctx context.Context, sub model.Submission, debug bool, mechanic string) (*feedback.Collection, string, error) {
	rec, err := s.source.Fetch(ctx, sub.LogURL)
	if err != nil {
		return nil, stageFetch, err
	}

	current, prior, err := s.store.AssignPool(ctx, sub.ID, rec.EncounterID, s.classifier.Classify(rec.EncounterID))
	if err != nil {
		return nil, stageAssign, err
	}

	verdict, err := s.validator.Validate(validation.Input{
		Record:     rec,
		Submission: current,
		Prior:      prior,
		Debug:      debug,
		Mechanic:   mechanic,
	})
	if err != nil {
		return nil, stageValidate, err
	}
	return verdict, "", nil
}

func (s *Service) fail(ctx context.Context, id, stage string, cause error) error {
	metrics.RecordValidationError(stage)
	err := fmt.Errorf("%s: %w", stage, cause)
	if saveErr := s.store.SaveVerdict(context.WithoutCancel(ctx), id, model.StatusError, err.Error(), nil); saveErr != nil {
		s.logger.Error(ctx, "failed to mark submission as errored",
			logger.String("id", id),
			logger.Error(saveErr),
		)
	}
	return err
}

func firstError(c *feedback.Collection) string {
	for _, g := range c.Groups() {
		for _, fb := range g.Items() {
			if fb.Severity() == feedback.Error {
				return fb.Message()
			}
		}
	}
	return ""
}

// Get returns one submission.
func (s *Service) Get(ctx context.Context, id string) (model.Submission, error) {
	return s.store.Get(ctx, id)
}

// History returns every submission of a submitter, oldest first.
func (s *Service) History(ctx context.Context, submitterID string) ([]model.Submission, error) {
	return s.store.ListBySubmitter(ctx, submitterID)
}

// SetStatus applies a reviewer decision. The error status is reserved for
// processing faults.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	st, err := model.ParseStatus(status)
	if err != nil || st == model.StatusError {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.UpdateStatus(ctx, id, st)
}

// Revalidate re-runs validation of a stored submission and returns the
// verdict without changing its status.
func (s *Service) Revalidate(ctx context.Context, id string, debug bool, mechanic string) (*feedback.Collection, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	verdict, stage, err := s.evaluate(ctx, sub, debug || s.debugMechanics, mechanic)
	if err != nil {
		metrics.RecordValidationError(stage)
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	return verdict, nil
}

// Killproof checks a defeated-boss list against a tier. Names are matched
// against the boss table ignoring case; unknown names are not counted.
func (s *Service) Killproof(defeated []string, tier int) (*feedback.Group, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.validator.Killproof(s.knownBosses(defeated), tier)
}

func (s *Service) knownBosses(defeated []string) []string {
	names := make(map[string]string, len(s.pack.Bosses))
	for _, b := range s.pack.Bosses {
		names[strings.ToLower(b.Name)] = b.Name
	}
	out := make([]string, 0, len(defeated))
	for _, d := range defeated {
		if name, ok := names[strings.ToLower(strings.TrimSpace(d))]; ok {
			out = append(out, name)
		}
	}
	return out
}

// EvaluateApplication runs the account-level checks of a tier application.
func (s *Service) EvaluateApplication(app account.Application) (*feedback.Collection, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return account.Evaluate(app, s.pack.Bosses, s.pack.TotalBossCount())
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len(ctx)
	stats["busyWorkers"] = s.workers.Busy()
	stats["inFlight"] = s.deduper.Size()

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to count submissions", logger.Error(err))
		return stats
	}
	byStatus := make(map[string]int, len(counts))
	for st, n := range counts {
		byStatus[string(st)] = n
	}
	stats["submissions"] = byStatus
	return stats
}
