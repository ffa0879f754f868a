package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastCycleUnix   atomic.Int64 // unix seconds
	lastCycleEvents atomic.Int64
	cycles          atomic.Int64
	streamClients   atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// TouchCycle - монитор закончил цикл.
func (s *State) TouchCycle(t time.Time, events int) {
	s.lastCycleUnix.Store(t.Unix())
	s.lastCycleEvents.Store(int64(events))
	s.cycles.Add(1)
}

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) LastCycleEvents() int64 { return s.lastCycleEvents.Load() }
func (s *State) Cycles() int64          { return s.cycles.Load() }

func (s *State) StreamOpened()        { s.streamClients.Add(1) }
func (s *State) StreamClosed()        { s.streamClients.Add(-1) }
func (s *State) StreamClients() int64 { return s.streamClients.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
