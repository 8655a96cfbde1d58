package livestate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chronic-risk-monitor/internal/domain"
)

// Reader is the read side of the live state. Views depend on this, never on
// the Producer, so reading cannot regenerate data.
type Reader interface {
	Current(ctx context.Context) (*Snapshot, error)
}

// State is the in-process live state.
type State struct {
	current atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   map[int]chan *Snapshot
	nextID int
}

// Producer is the single write handle to a State.
type Producer struct {
	state *State
	mu    sync.Mutex
	tick  uint64
}

// New creates an empty State and its only Producer.
func New() (*State, *Producer) {
	s := &State{subs: make(map[int]chan *Snapshot)}
	return s, &Producer{state: s}
}

// Current returns the latest snapshot, or domain.ErrNoSnapshot before the
// first publication.
func (s *State) Current(ctx context.Context) (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrNoSnapshot
	}
	return snap, nil
}

// Tick returns the latest published tick, 0 before the first publication.
func (s *State) Tick() uint64 {
	if snap := s.current.Load(); snap != nil {
		return snap.tick
	}
	return 0
}

// Subscribe returns a channel receiving every published snapshot. A
// subscriber that falls behind loses the oldest buffered snapshots, never
// the latest. Call cancel to unsubscribe.
func (s *State) Subscribe(buf int) (<-chan *Snapshot, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan *Snapshot, buf)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *State) broadcast(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// drop the oldest pending snapshot to make room for the newest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Publish builds the next snapshot from copies of its inputs and makes it
// visible to every reader with a single atomic store.
func (p *Producer) Publish(readings map[int]domain.DynamicReading, vectors []domain.CompositeFeatureVector, skipped []int) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tick++
	snap := newSnapshot(p.tick, readings, vectors, skipped)
	p.state.current.Store(snap)
	p.state.broadcast(snap)
	return snap
}

// State returns the state this producer writes to.
func (p *Producer) State() *State { return p.state }
