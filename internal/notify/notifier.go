package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notifier is the best-effort user alert sink. Show never returns an
// error; a lost notification is acceptable, an aborted watchdog sweep is
// not.
type Notifier interface {
	Show(title, body, tag string)
}

// LogNotifier renders alerts into the structured log. Tags dedupe within
// a TTL so a repeated alert for the same reason renders once.
type LogNotifier struct {
	log   zerolog.Logger
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		log:   log.With().Str("component", "notify").Logger(),
		seen:  make(map[string]time.Time),
		ttl:   24 * time.Hour,
		clock: time.Now,
	}
}

func (n *LogNotifier) Show(title, body, tag string) {
	if tag != "" && !n.markSeen(tag) {
		return
	}
	n.log.Info().Str("title", title).Str("body", body).Str("tag", tag).Msg("notification")
}

func (n *LogNotifier) markSeen(tag string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock()
	if shownAt, ok := n.seen[tag]; ok && now.Sub(shownAt) < n.ttl {
		return false
	}

	for key, shownAt := range n.seen {
		if now.Sub(shownAt) >= n.ttl {
			delete(n.seen, key)
		}
	}

	n.seen[tag] = now
	return true
}
