// orchestrator drives copy jobs: it provisions a worker pool per session,
// distributes work items to the workers, waits for them and reclaims the pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/distributor"
	derr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/domain/errors"
	xe "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/errors"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/scaling"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/retry"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/workloads/workerpool"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v4"
)

// WorkerPools provisions and reclaims worker pools.
//
// *workerpool.Client implements this.
type WorkerPools interface {
	CreateWorkerPool(ctx context.Context, sessionId string, replicas int) (workerpool.Handle, error)
	WaitUntilReady(ctx context.Context, h workerpool.Handle) ([]string, error)
	DeleteWorkerPool(ctx context.Context, name string) (string, error)
	DeleteAllWorkerPools(ctx context.Context, service string) (int, error)
}

// Distributor talks with workers.
//
// *distributor.Client implements this.
type Distributor interface {
	PollReady(ctx context.Context, addr string) bool
	Dispatch(ctx context.Context, addr string, creds session.Credentials, targetDir string, items []session.WorkItem) bool
	FetchProgress(ctx context.Context, addrs []string) ([]session.ProgressReport, error)
}

var _ WorkerPools = &workerpool.Client{}
var _ Distributor = &distributor.Client{}

// Polling parameters of a probe loop.
type Polling struct {
	// interval between probes.
	Interval time.Duration

	// the loop gives up after this. Zero or negative means no timeout.
	Timeout time.Duration

	// the loop gives up after this many retries. Zero or negative means unlimited.
	MaxAttempts int
}

var (
	DefaultProbePolling      = Polling{Interval: 500 * time.Millisecond, Timeout: 5 * time.Minute}
	DefaultCompletionPolling = Polling{Interval: 2 * time.Second, Timeout: 24 * time.Hour}
)

// timeout for deleting a pool after its job is finished.
const reclaimTimeout = time.Minute

type Orchestrator struct {
	sessions *session.Store
	pools    WorkerPools
	dist     Distributor

	mu       sync.RWMutex
	strategy scaling.Strategy
	cap      int

	jobs *xsync.Map[string, *Job]

	// session id -> pool name. A pool is here from its creation until somebody reclaims it.
	tracked *xsync.Map[string, string]

	probe      Polling
	completion Polling
	service    string
	base       context.Context
	logger     *log.Logger
	registerer prometheus.Registerer
	metrics    *metrics
}

type Option func(*Orchestrator) *Orchestrator

// WithCap sets the cap of capped strategies.
func WithCap(cap int) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.cap = cap
		return o
	}
}

// WithStrategy sets the initial strategy.
func WithStrategy(s scaling.Strategy) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.strategy = s
		return o
	}
}

// WithProbePolling sets polling parameters of the readiness probe before dispatch.
func WithProbePolling(p Polling) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.probe = p
		return o
	}
}

// WithCompletionPolling sets polling parameters of the completion probe after dispatch.
func WithCompletionPolling(p Polling) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.completion = p
		return o
	}
}

// WithServiceName sets the service-wide label value for CleanupOrphans.
func WithServiceName(name string) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.service = name
		return o
	}
}

// WithBaseContext sets the context where background jobs run.
//
// Cancelling it interrupts all jobs.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.base = ctx
		return o
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.logger = l
		return o
	}
}

// WithMetrics registers metrics of the orchestrator.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.registerer = reg
		return o
	}
}

func New(sessions *session.Store, pools WorkerPools, dist Distributor, options ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:   sessions,
		pools:      pools,
		dist:       dist,
		cap:        scaling.DefaultCap,
		jobs:       xsync.NewMap[string, *Job](),
		tracked:    xsync.NewMap[string, string](),
		probe:      DefaultProbePolling,
		completion: DefaultCompletionPolling,
		base:       context.Background(),
		logger:     log.New("orchestrator"),
	}
	for _, opt := range options {
		o = opt(o)
	}
	if o.strategy == nil {
		o.strategy = scaling.Default(o.cap)
	}
	o.metrics = newMetrics(o.registerer)
	return o
}

// SetStrategy selects the strategy by code. Unknown codes select the default.
func (o *Orchestrator) SetStrategy(code scaling.Code) scaling.Strategy {
	s := scaling.FromCode(code, o.cap)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.strategy = s
	o.logger.Infof("scaling strategy: %s", s)
	return s
}

func (o *Orchestrator) Strategy() scaling.Strategy {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.strategy
}

// Job returns the job of the session, if started.
func (o *Orchestrator) Job(sessionId string) (*Job, bool) {
	return o.jobs.Load(sessionId)
}

// Start begins copying items of the session into targetDir.
//
// Pool creation is done before return. The rest runs in background as the returned Job.
//
// # Returns
//
// - *Job: the background job.
//
// - error:
// ErrSessionNotFound for unknown sessions.
// ErrNotLoggedIn when the session has no credentials.
// ErrAlreadyStarted when the session has been started. Nothing is done then.
// *ErrProvisioning when the cluster rejects the pool. The session is Failed then.
func (o *Orchestrator) Start(ctx context.Context, sessionId string, targetDir string) (*Job, error) {
	s, err := o.sessions.Get(sessionId)
	if err != nil {
		return nil, err
	}
	if !s.IsLoggedIn() {
		return nil, derr.ErrNotLoggedIn
	}
	if !s.MarkStarted(targetDir) {
		return nil, derr.ErrAlreadyStarted
	}

	jctx, cancel := context.WithCancelCause(o.base)
	job := newJob(sessionId, cancel)
	o.jobs.Store(sessionId, job)
	o.metrics.jobsRunning.Inc()

	task := s.Task()
	replicas := o.Strategy().ChooseReplicas(len(task.Items))

	job.transit(Provisioning)
	h, err := o.pools.CreateWorkerPool(ctx, sessionId, replicas)
	if err != nil {
		o.logger.Errorf("session %s: %s", sessionId, err)
		o.terminate(s, job, Failed, err)
		cancel(err)
		return job, err
	}
	o.metrics.poolsCreated.Inc()
	o.tracked.Store(sessionId, h.Name)

	go func() {
		defer cancel(nil)
		o.run(jctx, s, job, h)
	}()
	return job, nil
}

func (o *Orchestrator) terminate(s *session.Session, job *Job, state State, err error) {
	if job.finish(state, err) {
		s.SetResult(err)
		o.metrics.finished(state)
	}
}

// cause returns the reason why ctx is done, or err when ctx is alive.
func cause(ctx context.Context, err error) error {
	if c := context.Cause(ctx); c != nil {
		return c
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context, s *session.Session, job *Job, h workerpool.Handle) {
	fail := func(err error) {
		err = cause(ctx, err)
		o.logger.Errorf("session %s: job failed: %s", s.ID(), err)
		job.transit(Reclaiming)
		if rerr := o.reclaim(ctx, s); rerr != nil {
			o.logger.Errorf("session %s: %s", s.ID(), rerr)
		}
		o.terminate(s, job, Failed, err)
	}

	if !job.transit(AwaitingReadiness) {
		return
	}
	addrs, err := o.pools.WaitUntilReady(ctx, h)
	if err != nil {
		fail(err)
		return
	}
	s.SetWorkers(addrs)
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}

	if !job.transit(Distributing) {
		return
	}
	task := s.Task()
	creds := s.Credentials()
	targetDir := s.TargetDir()
	parts := distributor.Partition(task.Items, len(addrs))
	for n, addr := range addrs {
		if len(parts[n]) == 0 {
			continue
		}
		if err := o.poll(ctx, o.probe, addr); err != nil {
			// killed or expired; not a fault of the worker.
			if ctx.Err() != nil {
				fail(err)
				return
			}
			o.metrics.dispatchFailures.Inc()
			fail(errors.Join(derr.NewDispatch(addr), err))
			return
		}
		if !o.dist.Dispatch(ctx, addr, creds, targetDir, parts[n]) {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			o.metrics.dispatchFailures.Inc()
			fail(derr.NewDispatch(addr))
			return
		}
		o.logger.Debugf("session %s: %d item(s) dispatched to %s", s.ID(), len(parts[n]), addr)
	}

	if !job.transit(AwaitingCompletion) {
		return
	}
	for _, addr := range addrs {
		if err := o.poll(ctx, o.completion, addr); err != nil {
			fail(err)
			return
		}
	}

	if reports, err := o.dist.FetchProgress(ctx, addrs); err == nil {
		s.SetSnapshot(reports)
	} else {
		o.logger.Warnf("session %s: final progress is not available: %s", s.ID(), err)
	}

	if !job.transit(Reclaiming) {
		return
	}
	if err := o.reclaim(ctx, s); err != nil {
		o.logger.Errorf("session %s: %s", s.ID(), err)
	}
	o.terminate(s, job, Completed, nil)
	o.logger.Infof("session %s: job completed", s.ID())
}

// poll probes the worker until it answers "done".
//
// # Returns
//
// - error: ErrDeadlineExceeded when the timeout of p is exceeded.
// retry.ErrTooManyAttempts when attempts are used up. Otherwise, cause of ctx.
func (o *Orchestrator) poll(ctx context.Context, p Polling, addr string) error {
	pctx := ctx
	if 0 < p.Timeout {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	_, err := retry.Blocking(
		pctx, retry.Limited(retry.StaticBackoff(p.Interval), p.MaxAttempts),
		func(ctx context.Context) (struct{}, error) {
			if o.dist.PollReady(ctx, addr) {
				return struct{}{}, nil
			}
			return struct{}{}, retry.ErrRetry
		},
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return cause(ctx, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: worker %s is busy for %s", derr.ErrDeadlineExceeded, addr, p.Timeout)
	}
	return xe.Wrap(err)
}

// reclaim deletes the pool of the session if it is tracked, and clears workers of the session.
//
// Only one of concurrent callers deletes the pool.
func (o *Orchestrator) reclaim(ctx context.Context, s *session.Session) error {
	defer s.ClearWorkers()

	name, ok := o.tracked.LoadAndDelete(s.ID())
	if !ok {
		return nil
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reclaimTimeout)
	defer cancel()
	if _, err := o.pools.DeleteWorkerPool(dctx, name); err != nil {
		// keep tracking to try again later.
		o.tracked.Store(s.ID(), name)
		return err
	}
	o.metrics.poolsDeleted.Inc()
	return nil
}

// Kill cancels the job of the session and deletes its worker pool.
//
// # Returns
//
// - string: outcome message of deletion
//
// - error: ErrSessionNotFound for unknown sessions. ErrNoWorkerPool when no pools are tracked for the session;
// nothing is deleted then.
func (o *Orchestrator) Kill(ctx context.Context, sessionId string) (string, error) {
	s, err := o.sessions.Get(sessionId)
	if err != nil {
		return "", err
	}

	name, ok := o.tracked.LoadAndDelete(sessionId)
	if !ok {
		return "", derr.ErrNoWorkerPool
	}

	job, hasJob := o.jobs.Load(sessionId)
	if hasJob {
		job.cancel(ErrKilled)
	}

	msg, err := o.pools.DeleteWorkerPool(ctx, name)
	if err != nil {
		o.tracked.Store(sessionId, name)
		return "", err
	}
	o.metrics.poolsDeleted.Inc()
	s.ClearWorkers()

	if hasJob {
		o.terminate(s, job, Failed, ErrKilled)
	}
	o.logger.Infof("session %s: killed", sessionId)
	return msg, nil
}

// Progress reports progress of items of the session.
//
// While workers are running, it asks them.
// When workers do not respond, or no workers are running yet, it returns an empty slice.
// After the job has been terminated, it returns the last progress.
func (o *Orchestrator) Progress(ctx context.Context, sessionId string) ([]session.ProgressReport, error) {
	s, err := o.sessions.Get(sessionId)
	if err != nil {
		return nil, err
	}

	if workers := s.Workers(); len(workers) != 0 {
		reports, err := o.dist.FetchProgress(ctx, workers)
		if err != nil {
			o.logger.Infof("session %s: %s", sessionId, err)
			return []session.ProgressReport{}, nil
		}
		s.SetSnapshot(reports)
		return reports, nil
	}

	if done, _ := s.Result(); done {
		return s.Snapshot(), nil
	}
	return []session.ProgressReport{}, nil
}

// Reclaim releases resources of the session, before it is forgotten.
//
// A running job is cancelled and waited for. If deleting the pool fails, it returns error.
func (o *Orchestrator) Reclaim(ctx context.Context, s *session.Session) error {
	job, hasJob := o.jobs.Load(s.ID())
	if hasJob {
		job.cancel(ErrExpired)
		select {
		case <-job.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := o.reclaim(ctx, s); err != nil {
		return err
	}
	if hasJob {
		o.jobs.Delete(s.ID())
	}
	return nil
}

// CleanupOrphans deletes all worker pools of this service, left by previous processes.
func (o *Orchestrator) CleanupOrphans(ctx context.Context) (int, error) {
	n, err := o.pools.DeleteAllWorkerPools(ctx, o.service)
	if 0 < n {
		o.logger.Infof("%d orphan worker pool(s) deleted", n)
	}
	return n, err
}
