package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cooldowns - время, до которого поставщик пропускается.
// Отметка только сдвигается вперёд, поэтому хватает атомиков без блокировки на чтение.
type Cooldowns struct {
	now func() time.Time

	mu    sync.Mutex
	until map[string]*atomic.Int64 // unix nano
}

func NewCooldowns() *Cooldowns {
	return NewCooldownsWithClock(time.Now)
}

func NewCooldownsWithClock(now func() time.Time) *Cooldowns {
	return &Cooldowns{now: now, until: make(map[string]*atomic.Int64)}
}

func (c *Cooldowns) Now() time.Time { return c.now() }

func (c *Cooldowns) slot(provider string) *atomic.Int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.until[provider]
	if !ok {
		s = &atomic.Int64{}
		c.until[provider] = s
	}
	return s
}

// Active - поставщик на паузе и до какого момента.
func (c *Cooldowns) Active(provider string) (time.Time, bool) {
	u := c.slot(provider).Load()
	if u == 0 {
		return time.Time{}, false
	}
	resume := time.Unix(0, u).UTC()
	return resume, c.now().Before(resume)
}

// Extend сдвигает паузу до resume. Более ранний resume игнорируется.
func (c *Cooldowns) Extend(provider string, resume time.Time) bool {
	s := c.slot(provider)
	next := resume.UnixNano()
	for {
		cur := s.Load()
		if next <= cur {
			return false
		}
		if s.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Snapshot - активные паузы, для /healthz.
func (c *Cooldowns) Snapshot() map[string]time.Time {
	c.mu.Lock()
	names := make([]string, 0, len(c.until))
	for name := range c.until {
		names = append(names, name)
	}
	c.mu.Unlock()

	out := make(map[string]time.Time)
	for _, name := range names {
		if resume, ok := c.Active(name); ok {
			out[name] = resume
		}
	}
	return out
}
