// Package thread groups conversation turns into topical threads. A thread
// continues only when the speaker explicitly signals continuation; otherwise
// a new utterance opens a fresh thread and the old one is archived.
package thread

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout is how long a thread stays current without activity.
const DefaultTimeout = 30 * time.Minute

const topicRuneLimit = 50

// continuationPhrases are the explicit markers that tie an utterance back to
// the current thread. Bare demonstratives ("that", "it") are deliberately not
// on the list; they are too ambiguous to anchor a topic.
var continuationPhrases = []string{
	"as we discussed",
	"as i mentioned",
	"back to",
	"regarding that",
	"returning to",
	"continuing from",
	"about that",
}

// Thread is one topical span of conversation.
type Thread struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	StartedAt   time.Time `json:"started_at"`
	LastActive  time.Time `json:"last_active"`
	EpisodeRefs []string  `json:"episode_refs"`
	Archived    bool      `json:"archived"`
}

// Tracker maintains the current thread plus an archive of completed ones.
type Tracker struct {
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	current *Thread
	archive map[string]*Thread
}

// NewTracker creates a tracker. timeout <= 0 uses DefaultTimeout.
func NewTracker(timeout time.Duration, logger *zap.Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout: timeout,
		logger:  logger,
		archive: make(map[string]*Thread),
	}
}

// Attach routes an utterance to a thread and returns it. The current thread
// continues only when it is still fresh AND the utterance carries an explicit
// continuation phrase; anything else archives the current thread and opens a
// new one.
func (t *Tracker) Attach(utterance string, now time.Time) *Thread {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		fresh := now.Sub(t.current.LastActive) < t.timeout
		if fresh && hasContinuationPhrase(utterance) {
			t.current.LastActive = now
			return t.current
		}
		t.archiveCurrentLocked()
	}

	th := &Thread{
		ID:         uuid.New().String(),
		Topic:      topicOf(utterance),
		StartedAt:  now,
		LastActive: now,
	}
	t.current = th
	t.logger.Debug("thread opened", zap.String("thread", th.ID), zap.String("topic", th.Topic))
	return th
}

// Current returns the active thread, or nil when none exists or the active
// one has gone stale.
func (t *Tracker) Current(now time.Time) *Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || now.Sub(t.current.LastActive) >= t.timeout {
		return nil
	}
	return t.current
}

// Get returns a thread by ID, current or archived.
func (t *Tracker) Get(id string) (*Thread, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.ID == id {
		return t.current, true
	}
	th, ok := t.archive[id]
	return th, ok
}

// Touch refreshes the current thread's activity time. Archived threads are
// never revived.
func (t *Tracker) Touch(threadID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.ID == threadID {
		t.current.LastActive = now
	}
}

// RecordEpisode links an episode to its thread.
func (t *Tracker) RecordEpisode(threadID, episodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.ID == threadID {
		t.current.EpisodeRefs = append(t.current.EpisodeRefs, episodeID)
		return
	}
	if th, ok := t.archive[threadID]; ok {
		th.EpisodeRefs = append(th.EpisodeRefs, episodeID)
	}
}

func (t *Tracker) archiveCurrentLocked() {
	t.current.Archived = true
	t.archive[t.current.ID] = t.current
	t.logger.Debug("thread archived",
		zap.String("thread", t.current.ID),
		zap.String("topic", t.current.Topic),
		zap.Int("episodes", len(t.current.EpisodeRefs)))
	t.current = nil
}

// Snapshot returns all threads for persistence, current one included.
func (t *Tracker) Snapshot() []Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Thread, 0, len(t.archive)+1)
	for _, th := range t.archive {
		out = append(out, *th)
	}
	if t.current != nil {
		out = append(out, *t.current)
	}
	return out
}

// Restore replaces tracker state from a persisted snapshot. At most one
// non-archived thread becomes current again.
func (t *Tracker) Restore(threads []Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.archive = make(map[string]*Thread, len(threads))
	for i := range threads {
		th := threads[i]
		if !th.Archived && t.current == nil {
			t.current = &th
			continue
		}
		th.Archived = true
		t.archive[th.ID] = &th
	}
}

func hasContinuationPhrase(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// topicOf derives a thread topic from its opening utterance.
func topicOf(utterance string) string {
	topic := strings.TrimSpace(utterance)
	runes := []rune(topic)
	if len(runes) > topicRuneLimit {
		topic = string(runes[:topicRuneLimit])
	}
	return topic
}
