package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/metrics"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize     = 300
	maxRetryDelay = 30 * time.Second
	taskTimeout   = 5 * time.Minute
)

type Config struct {
	Interval      time.Duration
	WorkerCount   int
	DailyPageSize int
	PresetsDir    string
	Now           func() time.Time
}

type Scheduler struct {
	fetcher     PageFetcher
	picksRepo   database.DailyPicksRepository
	presets     PresetLoader
	metrics     *metrics.Collector
	interval    time.Duration
	workerCount int
	pageSize    int
	presetsDir  string
	now         func() time.Time
	retryBase   time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

// NewScheduler builds the worker pool. When presets is set it is reloaded at
// startup and on every tick; pass nil when a file watcher keeps it current.
func NewScheduler(fetcher PageFetcher, picksRepo database.DailyPicksRepository, presets PresetLoader,
	m *metrics.Collector, c Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if c.Now == nil {
		c.Now = time.Now
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}

	return &Scheduler{
		fetcher:     fetcher,
		picksRepo:   picksRepo,
		presets:     presets,
		metrics:     m,
		interval:    c.Interval,
		workerCount: c.WorkerCount,
		pageSize:    c.DailyPageSize,
		presetsDir:  c.PresetsDir,
		now:         c.Now,
		retryBase:   time.Second,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueDailyRefresh queues a refresh of the picks for date. Unless force is
// set the task is a no-op when that day is already stored.
func (s *Scheduler) EnqueueDailyRefresh(date string, force bool) (*RefreshDailyPicksTask, error) {
	task := NewRefreshDailyPicksTask(date, s.fetcher, s.picksRepo, s.pageSize)
	task.Force = force
	if err := s.EnqueueTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Scheduler) today() string {
	return feed.DateKey(s.now().In(time.Local))
}

func (s *Scheduler) enqueueTasks() {
	if s.presets != nil {
		if err := s.EnqueueTask(NewReloadPresetsTask(s.presetsDir, s.presets)); err != nil {
			slog.Warn("Failed to enqueue ReloadPresetsTask", "dir", s.presetsDir, "error", err)
		}
	}

	date := s.today()
	if _, err := s.EnqueueDailyRefresh(date, false); err != nil {
		slog.Warn("Failed to enqueue RefreshDailyPicksTask", "date", date, "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		slog.Debug("Task completed", "worker_id", workerID, "type", string(task.GetType()), "subject", task.GetSubject(), "duration", task.GetDuration().String())
		s.observe(task, "success")
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.observe(task, "failed")
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryDelay(task.GetRetryCount())
	s.observe(task, "retry")

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelay doubles from retryBase on every attempt, capped at 30s.
func (s *Scheduler) retryDelay(attempt int) time.Duration {
	delay := s.retryBase << uint(attempt-1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	return delay
}

func (s *Scheduler) observe(task TaskInterface, status string) {
	if s.metrics != nil {
		s.metrics.Tasks.WithLabelValues(string(task.GetType()), status).Inc()
	}
}
