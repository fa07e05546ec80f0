package service

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"stationagent/internal/model"
)

// StationState is the latest live-feed outcome for one station.
type StationState struct {
	Counts    model.Counts
	Pushed    int
	Failed    int
	UpdatedAt time.Time
}

// State is the runtime state shared between tasks and the ops server.
type State struct {
	lastKnown atomic.Int64 // -1 until the poller confirms a switch
	liveFPS   atomic.Uint64

	mu       sync.RWMutex
	stations map[model.Station]StationState
}

func NewState() *State {
	s := &State{stations: make(map[model.Station]StationState)}
	s.lastKnown.Store(-1)
	return s
}

// LastKnownActive is the device id the poller last switched to.
func (s *State) LastKnownActive() (int, bool) {
	v := s.lastKnown.Load()
	return int(v), v >= 0
}

// setLastKnownActive must only be called by the poller.
func (s *State) setLastKnownActive(id int) {
	s.lastKnown.Store(int64(id))
}

func (s *State) LiveFPS() float64 {
	return math.Float64frombits(s.liveFPS.Load())
}

func (s *State) setLiveFPS(fps float64) {
	s.liveFPS.Store(math.Float64bits(fps))
}

func (s *State) recordLive(station model.Station, counts model.Counts, pushed bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stations[station]
	st.Counts = counts
	st.UpdatedAt = at
	if pushed {
		st.Pushed++
	} else {
		st.Failed++
	}
	s.stations[station] = st
}

// Stations returns a copy of the per-station live state.
func (s *State) Stations() map[model.Station]StationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Station]StationState, len(s.stations))
	for k, v := range s.stations {
		out[k] = v
	}
	return out
}
