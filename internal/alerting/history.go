package alerting

import (
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Roster is the high-risk roster computed for one tick.
type Roster struct {
	Tick        uint64    `json:"tick"`
	GeneratedAt time.Time `json:"generated_at"`
	Patients    int       `json:"patients"`
	HighRisk    []int     `json:"high_risk"`
	Skipped     []int     `json:"skipped,omitempty"`
}

// AtRisk reports whether any patient was at risk.
func (r Roster) AtRisk() bool { return len(r.HighRisk) > 0 }

// History keeps the most recent rosters keyed by tick.
type History struct {
	cache *lru.Cache[uint64, Roster]
}

// NewHistory creates a history holding at most size rosters.
func NewHistory(size int) (*History, error) {
	cache, err := lru.New[uint64, Roster](size)
	if err != nil {
		return nil, fmt.Errorf("creating roster history: %w", err)
	}
	return &History{cache: cache}, nil
}

// Add records a roster, evicting the oldest when full.
func (h *History) Add(r Roster) {
	r.HighRisk = append(make([]int, 0, len(r.HighRisk)), r.HighRisk...)
	r.Skipped = append([]int(nil), r.Skipped...)
	h.cache.Add(r.Tick, r)
}

// Get returns the roster of one tick.
func (h *History) Get(tick uint64) (Roster, bool) {
	return h.cache.Peek(tick)
}

// Latest returns the roster with the highest tick.
func (h *History) Latest() (Roster, bool) {
	ticks := h.cache.Keys()
	if len(ticks) == 0 {
		return Roster{}, false
	}
	var latest uint64
	for _, t := range ticks {
		if t > latest {
			latest = t
		}
	}
	return h.cache.Peek(latest)
}

// List returns every retained roster, newest first.
func (h *History) List() []Roster {
	ticks := h.cache.Keys()
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })

	out := make([]Roster, 0, len(ticks))
	for _, t := range ticks {
		if r, ok := h.cache.Peek(t); ok {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of retained rosters.
func (h *History) Len() int { return h.cache.Len() }
