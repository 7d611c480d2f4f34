package flow

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// timerEntry tracks information about a scheduled timer
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	description string
}

// SimpleTimer implements the Timer interface using Go's standard time package.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.RWMutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleAfter schedules a function to run after a delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("cannot schedule a nil function")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	now := time.Now()

	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, pending := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if !pending {
			// Cancelled after the runtime already fired the timer.
			return
		}
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
	})

	t.timers[id] = &timerEntry{
		timer:       timer,
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: fmt.Sprintf("Timer scheduled for %v", delay),
	}

	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay)
	return id, nil
}

// Cancel cancels a scheduled function by ID.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
		return nil
	}

	slog.Debug("SimpleTimer Cancel: timer not found", "id", id)
	return nil
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("SimpleTimer stopping all timers", "count", len(t.timers))
	for _, entry := range t.timers {
		entry.timer.Stop()
	}
	t.timers = make(map[string]*timerEntry)
}

// ListActive returns information about all pending timers, soonest first.
func (t *SimpleTimer) ListActive() []TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]TimerInfo, 0, len(t.timers))
	now := time.Now()
	for id, entry := range t.timers {
		remaining := entry.expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		result = append(result, TimerInfo{
			ID:          id,
			ScheduledAt: entry.scheduledAt,
			ExpiresAt:   entry.expiresAt,
			Remaining:   remaining.String(),
			Description: entry.description,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	return result
}

type manualTask struct {
	id  string
	due time.Duration
	seq int64
	fn  func()
}

// ManualTimer is a Timer driven by an explicit virtual clock. Nothing runs until Advance or
// Flush is called, and functions run on the caller's goroutine.
type ManualTimer struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int64
	tasks  []manualTask
}

// NewManualTimer creates a ManualTimer at virtual time zero.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{}
}

// ScheduleAfter queues fn to run once the virtual clock passes delay from now.
func (m *ManualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("cannot schedule a nil function")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("manual_%d", m.nextID)
	m.tasks = append(m.tasks, manualTask{id: id, due: m.now + delay, seq: m.nextID, fn: fn})
	return id, nil
}

// Cancel removes a pending function.
func (m *ManualTimer) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, task := range m.tasks {
		if task.id == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			break
		}
	}
	return nil
}

// Stop drops every pending function.
func (m *ManualTimer) Stop() {
	m.mu.Lock()
	m.tasks = nil
	m.mu.Unlock()
}

// Pending returns the number of queued functions.
func (m *ManualTimer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves the virtual clock forward by d and runs every function that became due, in
// due order. Functions scheduled while running are honoured if they fall within the window.
func (m *ManualTimer) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	ran := 0
	for {
		m.mu.Lock()
		idx := -1
		for i, task := range m.tasks {
			if task.due > target {
				continue
			}
			if idx < 0 || task.due < m.tasks[idx].due || (task.due == m.tasks[idx].due && task.seq < m.tasks[idx].seq) {
				idx = i
			}
		}
		if idx < 0 {
			m.now = target
			m.mu.Unlock()
			return ran
		}
		task := m.tasks[idx]
		m.tasks = append(m.tasks[:idx], m.tasks[idx+1:]...)
		if task.due > m.now {
			m.now = task.due
		}
		m.mu.Unlock()

		task.fn()
		ran++
	}
}

// Flush runs every pending function regardless of its delay.
func (m *ManualTimer) Flush() int {
	m.mu.Lock()
	var latest time.Duration
	for _, task := range m.tasks {
		if task.due > latest {
			latest = task.due
		}
	}
	d := latest - m.now
	m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	return m.Advance(d)
}
