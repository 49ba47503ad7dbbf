// Package worker runs calendar syncs in the background off a Redis list.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const JobTypeCalendarSync JobType = "calendar_sync"

const (
	QueueSync = "planner:jobs:sync"
	QueueDead = "planner:jobs:dead"
)

type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	UserID    uint            `json:"user_id"`
	Provider  models.Provider `json:"provider"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"max_tries"`
	CreatedAt time.Time       `json:"created_at"`
	ProcessAt time.Time       `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queue        string
	pollInterval time.Duration
	jobTimeout   time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	PollInterval time.Duration
	JobTimeout   time.Duration
	Queue        string
	Logger       *slog.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 2 * time.Minute
	}
	if config.Queue == "" {
		config.Queue = QueueSync
	}
	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queue:        config.Queue,
		pollInterval: config.PollInterval,
		jobTimeout:   config.JobTimeout,
		logger:       config.Logger.With("component", "worker"),
		now:          time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches concurrency loops that run until Stop or ctx is done.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("starting worker", "concurrency", concurrency, "queue", w.queue)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
}

func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("error processing job", "error", err)
		}
		if !processed || err != nil {
			select {
			case <-ctx.Done():
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// ProcessNext pops one job and runs it if it is due. It reports whether a
// due job was handled.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	result, err := w.client.BLPop(ctx, w.pollInterval, w.queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pop job: %w", err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return false, fmt.Errorf("unmarshal job: %w", err)
	}

	if w.now().Before(job.ProcessAt) {
		return false, w.enqueue(ctx, w.queue, &job)
	}
	return true, w.execute(ctx, &job)
}

func (w *Worker) execute(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.bury(ctx, job, fmt.Errorf("no handler registered for job type %s", job.Type))
	}

	log := w.logger.With("job_id", job.ID, "type", job.Type, "user_id", job.UserID, "provider", job.Provider)
	log.Info("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		log.Info("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries && !errors.Is(err, ErrPermanent) {
		delay := time.Duration(1<<job.Attempts) * time.Minute
		job.ProcessAt = w.now().Add(delay)
		log.Warn("job failed, retrying", "attempt", job.Attempts, "max_tries", job.MaxTries, "retry_in", delay, "error", err)
		return w.enqueue(ctx, w.queue, job)
	}

	log.Error("job failed permanently", "attempts", job.Attempts, "error", err)
	return w.bury(ctx, job, err)
}

func (w *Worker) enqueue(ctx context.Context, queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return w.client.RPush(ctx, queue, data).Err()
}

type DeadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (w *Worker) bury(ctx context.Context, job *Job, jobErr error) error {
	data, err := json.Marshal(DeadJob{Job: job, Error: jobErr.Error(), FailedAt: w.now()})
	if err != nil {
		return fmt.Errorf("marshal dead job: %w", err)
	}
	return w.client.RPush(ctx, QueueDead, data).Err()
}

// JobQueue is the producer side of the worker.
type JobQueue struct {
	client   *redis.Client
	queue    string
	maxTries int
	now      func() time.Time
}

func NewJobQueue(client *redis.Client, maxTries int) *JobQueue {
	if maxTries < 1 {
		maxTries = 1
	}
	return &JobQueue{client: client, queue: QueueSync, maxTries: maxTries, now: time.Now}
}

// EnqueueSync schedules a full sync of provider for userID.
func (q *JobQueue) EnqueueSync(ctx context.Context, userID uint, provider models.Provider) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := q.now()
	job := &Job{
		ID:        id.String(),
		Type:      JobTypeCalendarSync,
		UserID:    userID,
		Provider:  provider,
		MaxTries:  q.maxTries,
		CreatedAt: now,
		ProcessAt: now,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.queue, data).Err(); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

func (q *JobQueue) Sizes(ctx context.Context) (map[string]int64, error) {
	sizes := make(map[string]int64, 2)
	for _, name := range []string{q.queue, QueueDead} {
		n, err := q.client.LLen(ctx, name).Result()
		if err != nil {
			return nil, err
		}
		sizes[name] = n
	}
	return sizes, nil
}

// SyncHandler runs a full sync. Missing connections and local validation
// problems are not retried.
func SyncHandler(run func(ctx context.Context, userID uint, provider models.Provider) error) JobHandler {
	return func(ctx context.Context, job *Job) error {
		err := run(ctx, job.UserID, job.Provider)
		var verr *apperrors.ValidationError
		if errors.Is(err, apperrors.ErrNotConnected) || errors.As(err, &verr) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return err
	}
}
