// Package store guards the grid's authoritative state behind a
// reader-writer lock and persists it crash-safely via write-temp-then-rename.
package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/metrics"
)

// GridState is the full persisted snapshot of one grid instance.
type GridState struct {
	Status               gridcore.BotStatus      `json:"status"`
	Levels               []gridcore.Level        `json:"levels,omitempty"`
	Zones                []gridcore.Zone         `json:"zones,omitempty"`
	OIDToLevel           map[string]int          `json:"oid_to_level"`
	Profit               gridcore.Profit         `json:"profit"`
	CurrentPosition      float64                 `json:"current_position"`
	LastMidPrice         float64                 `json:"last_mid_price"`
	InitBuyOID           string                  `json:"init_buy_oid,omitempty"`
	InitPositionAcquired bool                    `json:"init_position_acquired"`
	RecentTrades         []gridcore.TradeRecord  `json:"recent_trades,omitempty"`
	RoundTrips           []gridcore.RoundTrip    `json:"round_trips,omitempty"`
	ConfigSnapshot       gridcore.ConfigSnapshot `json:"config_snapshot"`
	LastUpdated          int64                   `json:"last_updated"`
}

// Touch stamps LastUpdated with the current time, in milliseconds.
func (s *GridState) Touch(now time.Time) {
	s.LastUpdated = now.UnixMilli()
}

// FindLevelByOID returns the ladder index bound to oid, if any.
func (s *GridState) FindLevelByOID(oid string) (int, bool) {
	idx, ok := s.OIDToLevel[oid]
	return idx, ok
}

// RegisterOrder binds oid to a ladder index.
func (s *GridState) RegisterOrder(oid string, levelIndex int) {
	if s.OIDToLevel == nil {
		s.OIDToLevel = make(map[string]int)
	}
	s.OIDToLevel[oid] = levelIndex
}

// UnregisterOrder removes oid's binding, if present.
func (s *GridState) UnregisterOrder(oid string) {
	delete(s.OIDToLevel, oid)
}

// CountActiveBuys counts level-variant levels with a resting buy order.
func (s *GridState) CountActiveBuys() int {
	n := 0
	for _, l := range s.Levels {
		if l.HasActiveOrder() && l.IntendedSide == gridcore.Buy {
			n++
		}
	}
	return n
}

// CountActiveSells counts level-variant levels with a resting sell order.
func (s *GridState) CountActiveSells() int {
	n := 0
	for _, l := range s.Levels {
		if l.HasActiveOrder() && l.IntendedSide == gridcore.Sell {
			n++
		}
	}
	return n
}

// Store wraps a *GridState behind a RWMutex and manages its persistence
// cadence. Exactly one writer (the controller) and arbitrarily many readers
// (dashboard, risk watcher) are expected.
type Store struct {
	mu           sync.RWMutex
	state        GridState
	path         string
	saveInterval time.Duration
	lastSave     time.Time
}

// New wraps an already-constructed state for the given persistence path and
// save cadence. Pass an empty path to disable persistence entirely.
func New(state GridState, path string, saveInterval time.Duration) *Store {
	return &Store{state: state, path: path, saveInterval: saveInterval, lastSave: time.Now()}
}

// Read returns a deep-enough copy of the state for a consistent snapshot
// read (the dashboard's use case); it does not block writers longer than
// the copy itself takes.
func (s *Store) Read() GridState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Update takes the exclusive lock, stamps LastUpdated, applies f, releases
// the lock, then opportunistically flushes to disk if the save interval has
// elapsed. f receives a pointer into the live state: it must not retain it
// past return.
func (s *Store) Update(f func(*GridState)) error {
	s.mu.Lock()
	s.state.Touch(time.Now())
	f(&s.state)
	s.mu.Unlock()
	return s.maybeSave()
}

func (s *Store) maybeSave() error {
	s.mu.RLock()
	elapsed := time.Since(s.lastSave)
	s.mu.RUnlock()
	if elapsed < s.saveInterval {
		return nil
	}
	return s.ForceSave()
}

// ForceSave unconditionally flushes the current state to disk, atomically.
// A crash between the temp-file write and the rename cannot leave a
// truncated state file in place of the prior good one.
func (s *Store) ForceSave() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	snapshot := cloneState(s.state)
	s.mu.RUnlock()

	body, err := json.MarshalIndent(snapshot, "", " ")
	if err != nil {
		metrics.IncStateSave("error")
		return gridcore.ErrStatePersistence(err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		metrics.IncStateSave("error")
		return gridcore.ErrStatePersistence(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		metrics.IncStateSave("error")
		return gridcore.ErrStatePersistence(err)
	}

	s.mu.Lock()
	s.lastSave = time.Now()
	s.mu.Unlock()
	metrics.IncStateSave("ok")
	return nil
}

// LoadOrCreate loads path if it exists and its config snapshot still
// matches cfg. A parse error falls back to a freshly initialized state
// (logged, not fatal — matches the teacher's load-then-warn-then-fresh
// convention for corrupt files). A snapshot *mismatch* is not a corrupt
// file, it is a different grid instance's state: that is a configuration
// error and is rejected rather than silently discarded.
func LoadOrCreate(path string, saveInterval time.Duration, snapshot gridcore.ConfigSnapshot, fresh func() GridState) (*Store, error) {
	if path == "" {
		return New(fresh(), path, saveInterval), nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(fresh(), path, saveInterval), nil
		}
		return nil, gridcore.ErrStatePersistence(err)
	}

	var loaded GridState
	if err := json.Unmarshal(body, &loaded); err != nil {
		log.Printf("state: failed to parse %s (%v), starting fresh", path, err)
		return New(fresh(), path, saveInterval), nil
	}
	if !loaded.ConfigSnapshot.Matches(configFromSnapshot(snapshot)) {
		return nil, gridcore.ErrInvalidConfig(
			"state: " + path + " was persisted against a different config (asset/bounds/num_grids); refusing to start")
	}
	return New(loaded, path, saveInterval), nil
}

// configFromSnapshot adapts a bare ConfigSnapshot to the Matches receiver's
// expected shape without pulling the full gridcore.GridConfig type in.
func configFromSnapshot(s gridcore.ConfigSnapshot) gridcore.GridConfig {
	return gridcore.GridConfig{
		Asset:      s.Asset,
		LowerPrice: s.LowerPrice,
		UpperPrice: s.UpperPrice,
		NumGrids:   s.NumGrids,
	}
}

func cloneState(s GridState) GridState {
	out := s
	out.Levels = append([]gridcore.Level(nil), s.Levels...)
	out.Zones = append([]gridcore.Zone(nil), s.Zones...)
	out.RecentTrades = append([]gridcore.TradeRecord(nil), s.RecentTrades...)
	out.RoundTrips = append([]gridcore.RoundTrip(nil), s.RoundTrips...)
	out.OIDToLevel = make(map[string]int, len(s.OIDToLevel))
	for k, v := range s.OIDToLevel {
		out.OIDToLevel[k] = v
	}
	return out
}
