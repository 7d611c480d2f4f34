package flow

import (
	"github.com/BTreeMap/BrandOS/internal/store"
)

// NewTestSessionManager creates a manager backed by an in-memory store and a ManualTimer, so
// delayed completions only happen when the returned timer is advanced.
func NewTestSessionManager(opts ...ManagerOption) (*SessionManager, *ManualTimer) {
	timer := NewManualTimer()
	opts = append([]ManagerOption{WithTimer(timer)}, opts...)
	return NewSessionManager(store.NewInMemoryStore(), opts...), timer
}
