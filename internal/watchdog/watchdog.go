package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duotask/internal/models"
	"duotask/internal/notify"
	"duotask/internal/realtime"
	"duotask/internal/store"

	"github.com/rs/zerolog"
)

const (
	defaultSweepInterval = time.Minute
	defaultDueSoonWindow = 2 * time.Hour
)

// Watchdog periodically sweeps the mirror snapshot for time-derived
// transitions: past-due status, due-soon warnings, and priority
// escalation. Field changes go straight through the store update path;
// the mirror reconciles via the echoed change event.
type Watchdog struct {
	store    store.TaskStore
	bus      realtime.Publisher
	notifier notify.Notifier
	snapshot func() []models.Task
	user     models.Profile
	log      zerolog.Logger

	interval      time.Duration
	dueSoonWindow time.Duration
	clock         func() time.Time

	// notified keys (taskID:reason) make each alert at-most-once per
	// process lifetime. Deliberately not persisted: a restart may
	// re-alert for a still-overdue task.
	mu       sync.Mutex
	notified map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Config struct {
	Store         store.TaskStore
	Bus           realtime.Publisher
	Notifier      notify.Notifier
	Snapshot      func() []models.Task
	User          models.Profile
	SweepInterval time.Duration
	DueSoonWindow time.Duration
	Logger        zerolog.Logger
	Clock         func() time.Time
}

func New(config Config) *Watchdog {
	interval := config.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	window := config.DueSoonWindow
	if window <= 0 {
		window = defaultDueSoonWindow
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watchdog{
		store:         config.Store,
		bus:           config.Bus,
		notifier:      config.Notifier,
		snapshot:      config.Snapshot,
		user:          config.User,
		log:           config.Logger.With().Str("component", "watchdog").Logger(),
		interval:      interval,
		dueSoonWindow: window,
		clock:         clock,
		notified:      make(map[string]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (w *Watchdog) Start() {
	w.wg.Add(1)
	go w.loop()
	w.log.Info().Dur("interval", w.interval).Msg("watchdog started")
}

func (w *Watchdog) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info().Msg("watchdog stopped")
}

func (w *Watchdog) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(w.ctx)
		}
	}
}

// Sweep evaluates every task in the current snapshot. A failure on one
// task never aborts the rest of the pass.
func (w *Watchdog) Sweep(ctx context.Context) {
	now := w.clock()
	for _, task := range w.snapshot() {
		if err := w.sweepTask(ctx, task, now); err != nil {
			w.log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("sweep failed for task")
		}
	}
}

func (w *Watchdog) sweepTask(ctx context.Context, task models.Task, now time.Time) error {
	if task.IsCompleted() || task.DueAt == nil {
		return nil
	}

	due := *task.DueAt
	isPastDue := due.Before(now)
	isDueSoon := !isPastDue && due.Before(now.Add(w.dueSoonWindow))

	var patch store.TaskPatch

	if isPastDue && task.Status == models.StatusActive {
		status := models.StatusPastDue
		patch.Status = &status
		w.alertPastDue(ctx, task)
	}

	if isDueSoon && task.Status == models.StatusActive {
		if w.markNotified(task.ID.String()+":due-soon") && task.IsOwnedBy(w.user.ID) {
			w.show("Task due soon", task.Title, "due-soon-"+task.ID.String())
		}
	}

	// Escalation only ever raises priority. A due date pushed back out
	// does not demote.
	daysUntil := int(due.Sub(now).Hours() / 24)
	if daysUntil <= 2 && task.Priority != models.PriorityHigh {
		priority := models.PriorityHigh
		patch.Priority = &priority
	} else if daysUntil <= 7 && task.Priority == models.PriorityLow {
		priority := models.PriorityMedium
		patch.Priority = &priority
	}

	if patch.IsEmpty() {
		return nil
	}
	if _, err := w.store.Update(ctx, task.ID, patch); err != nil {
		return fmt.Errorf("failed to apply sweep patch: %w", err)
	}
	return nil
}

func (w *Watchdog) alertPastDue(ctx context.Context, task models.Task) {
	if !w.markNotified(task.ID.String() + ":due") {
		return
	}

	isOwner := task.IsOwnedBy(w.user.ID)
	isShared := task.Visibility == models.VisibilityShared

	if isOwner || isShared {
		title := "Your task is due"
		if !isOwner {
			title = "Partner's task is due"
		}
		w.show(title, task.Title, "due-"+task.ID.String())
	}

	// The partner's watchdog only sweeps their own session, so shared
	// tasks broadcast the alert across.
	if isShared && w.user.PartnerID != nil && w.bus != nil {
		due := realtime.TaskDue{TaskID: task.ID, Title: task.Title, IsPartnerTask: true}
		if err := w.bus.PublishTaskDue(ctx, *w.user.PartnerID, due); err != nil {
			w.log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("failed to broadcast due alert")
		}
	}
}

// markNotified records the key and reports whether it was new. The key is
// recorded even when the subsequent owner check suppresses the alert.
func (w *Watchdog) markNotified(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.notified[key]; done {
		return false
	}
	w.notified[key] = struct{}{}
	return true
}

func (w *Watchdog) show(title, body, tag string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Show(title, body, tag)
}
