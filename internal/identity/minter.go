package identity

import (
	"strconv"
	"sync"
	"time"
)

// Minter hands out identifiers whose local part is a per-authority logical clock:
// max(wall-clock millis, previous+1). Ids stay strictly increasing per authority
// when the wall clock stalls, repeats a millisecond, or steps backwards.
type Minter struct {
	mu   sync.Mutex
	last map[string]int64
	now  func() time.Time
}

// NewMinter returns a Minter reading time from now (time.Now when nil).
func NewMinter(now func() time.Time) *Minter {
	if now == nil {
		now = time.Now
	}
	return &Minter{last: make(map[string]int64), now: now}
}

// Mint returns the next identifier of kind under authority.
func (m *Minter) Mint(authority string, kind Kind) ID {
	return New(authority, kind, strconv.FormatInt(m.next(authority), 10))
}

// Observe advances the clock of id's authority so later mints sort after it.
// Non-numeric local parts are ignored.
func (m *Minter) Observe(id ID) {
	seq, err := strconv.ParseInt(id.LocalPart, 10, 64)
	if err != nil {
		return
	}
	m.mu.Lock()
	if seq > m.last[id.Authority] {
		m.last[id.Authority] = seq
	}
	m.mu.Unlock()
}

func (m *Minter) next(authority string) int64 {
	ts := m.now().UnixMilli()
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev := m.last[authority]; ts <= prev {
		ts = prev + 1
	}
	m.last[authority] = ts
	return ts
}
