package duotask

import (
	"context"
	"testing"
	"time"

	"duotask/internal/engine"
	"duotask/internal/models"
	"duotask/internal/realtime"
	"duotask/internal/store"
	"duotask/internal/watchdog"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pairHarness struct {
	bus   *realtime.RedisBus
	store *store.GormTaskStore

	alice      models.Profile
	bob        models.Profile
	aliceEng   *engine.Engine
	bobEng     *engine.Engine
	cancelRuns context.CancelFunc
}

func newPairHarness(t *testing.T) *pairHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	server := miniredis.RunT(t)
	config := realtime.DefaultBusConfig()
	config.Addr = server.Addr()
	bus := realtime.NewRedisBus(config, zerolog.Nop())
	t.Cleanup(func() { bus.Close() })

	taskStore := store.NewGormTaskStore(db, bus, zerolog.Nop())

	aliceID, _ := uuid.NewV4()
	bobID, _ := uuid.NewV4()
	alice := models.Profile{ID: aliceID, Name: "Alice", PartnerID: &bobID}
	bob := models.Profile{ID: bobID, Name: "Bob", PartnerID: &aliceID}

	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	newEngine := func(user models.Profile) *engine.Engine {
		eng := engine.New(engine.Config{
			Store:     taskStore,
			Bus:       bus,
			Sub:       bus,
			User:      user,
			WeekStart: time.Sunday,
			Logger:    zerolog.Nop(),
		})
		if err := eng.FetchAll(context.Background()); err != nil {
			t.Fatalf("initial fetch failed: %v", err)
		}
		go eng.Run(runCtx)
		return eng
	}

	h := &pairHarness{
		bus:        bus,
		store:      taskStore,
		alice:      alice,
		bob:        bob,
		aliceEng:   newEngine(alice),
		bobEng:     newEngine(bob),
		cancelRuns: cancel,
	}

	// The event loops subscribe in the background; publishing before they
	// are attached would silently drop events. The undecodable probe is
	// discarded by the subscribers.
	waitFor(t, "both engines to subscribe", func() bool {
		return server.Publish("tasks:changes", "probe") >= 2 &&
			server.Publish("milestone:"+bob.ID.String(), "probe") >= 1
	})

	return h
}

func waitFor(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSharedTaskPropagatesBetweenPartners(t *testing.T) {
	h := newPairHarness(t)

	created, err := h.aliceEng.AddTask(context.Background(), engine.TaskDraft{
		Title:      "plan the weekend",
		Visibility: models.VisibilityShared,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	waitFor(t, "task to reach bob's mirror", func() bool {
		for _, task := range h.bobEng.Tasks() {
			if task.ID == created.ID {
				return true
			}
		}
		return false
	})

	// Alice holds the optimistic entry already; the echoed insert must
	// not duplicate it.
	time.Sleep(100 * time.Millisecond)
	count := 0
	for _, task := range h.aliceEng.Tasks() {
		if task.ID == created.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one mirror entry on alice's side, got %d", count)
	}
}

func TestCompletionTogglePropagates(t *testing.T) {
	h := newPairHarness(t)

	created, err := h.aliceEng.AddTask(context.Background(), engine.TaskDraft{
		Title:      "dishes",
		Visibility: models.VisibilityShared,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	waitFor(t, "task to reach bob's mirror", func() bool {
		for _, task := range h.bobEng.Tasks() {
			if task.ID == created.ID {
				return true
			}
		}
		return false
	})

	if err := h.bobEng.ToggleTaskCompletion(context.Background(), created.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	waitFor(t, "completion to reach alice's mirror", func() bool {
		for _, task := range h.aliceEng.Tasks() {
			if task.ID == created.ID && task.IsCompleted() {
				return true
			}
		}
		return false
	})
}

func TestDeletePropagates(t *testing.T) {
	h := newPairHarness(t)

	created, err := h.aliceEng.AddTask(context.Background(), engine.TaskDraft{
		Title:      "temp",
		Visibility: models.VisibilityShared,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	waitFor(t, "task to reach bob's mirror", func() bool {
		return len(h.bobEng.Tasks()) == 1
	})

	if err := h.aliceEng.DeleteTask(context.Background(), created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	waitFor(t, "delete to reach both mirrors", func() bool {
		return len(h.aliceEng.Tasks()) == 0 && len(h.bobEng.Tasks()) == 0
	})
}

func TestPartnerMilestoneCelebration(t *testing.T) {
	h := newPairHarness(t)

	if err := h.bus.PublishMilestone(context.Background(), h.bob.ID, realtime.Milestone{Count: 5}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case milestone := <-h.bobEng.Celebrations():
		if milestone.Count != 5 {
			t.Errorf("expected count 5, got %d", milestone.Count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("celebration never arrived")
	}
}

func TestWatchdogTransitionPropagates(t *testing.T) {
	h := newPairHarness(t)

	due := time.Now().Add(-time.Hour)
	created, err := h.aliceEng.AddTask(context.Background(), engine.TaskDraft{
		Title:      "overdue chore",
		Visibility: models.VisibilityShared,
		DueAt:      &due,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	waitFor(t, "task to reach bob's mirror", func() bool {
		return len(h.bobEng.Tasks()) == 1
	})

	dog := watchdog.New(watchdog.Config{
		Store:    h.store,
		Bus:      h.bus,
		Snapshot: h.aliceEng.Tasks,
		User:     h.alice,
		Logger:   zerolog.Nop(),
	})
	dog.Sweep(context.Background())

	waitFor(t, "past-due status to reach both mirrors", func() bool {
		pastDue := func(tasks []models.Task) bool {
			for _, task := range tasks {
				if task.ID == created.ID && task.Status == models.StatusPastDue {
					return true
				}
			}
			return false
		}
		return pastDue(h.aliceEng.Tasks()) && pastDue(h.bobEng.Tasks())
	})
}
