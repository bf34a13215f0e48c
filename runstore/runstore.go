package runstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/EthelSakyi/SIRVariation/core"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventRunCompleted EventType = iota
)

// Event is emitted to subscribers when a run is recorded.
type Event struct {
	Type EventType
	Run  Summary
}

// Record holds everything produced by one completed simulation run: the
// inputs that determine it and the graph/history triple the renderer
// consumes.
type Record struct {
	ID        string
	CreatedAt time.Time
	Params    core.Params
	Seed      int64
	Graph     *core.ContactGraph
	History   core.History
}

// Summary is the lightweight listing view of a record.
type Summary struct {
	ID        string
	CreatedAt time.Time
	Params    core.Params
	Seed      int64
	Nodes     int
	Edges     int
	Steps     int
	FinalS    int
	FinalI    int
	FinalR    int
	Outcome   string // "extinct" or "max_steps"
}

// Summarize derives the listing view from a record.
func (r *Record) Summarize() Summary {
	s := Summary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Params:    r.Params,
		Seed:      r.Seed,
		Steps:     len(r.History),
	}
	if r.Graph != nil {
		s.Nodes = r.Graph.NumNodes()
		s.Edges = r.Graph.NumEdges()
	}
	if final := r.History.Final(); final != nil {
		s.FinalS, s.FinalI, s.FinalR = final.Counts()
	}
	if s.FinalI == 0 {
		s.Outcome = "extinct"
	} else {
		s.Outcome = "max_steps"
	}
	return s
}

// Store is an in-memory, thread-safe registry of completed runs.
type Store struct {
	mu sync.RWMutex

	runs  map[string]*Record
	order []string

	subs    map[int]func(Event)
	nextSub int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*Record),
		subs: make(map[int]func(Event)),
	}
}

// Add records a completed run. It returns an error if the ID is empty
// or already taken.
func (s *Store) Add(rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("run record with empty ID")
	}

	s.mu.Lock()
	if _, exists := s.runs[rec.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("run with ID %q already exists", rec.ID)
	}
	s.runs[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	event := Event{Type: EventRunCompleted, Run: rec.Summarize()}
	subs := make([]func(Event), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Get returns the run with the given ID, or nil if not found.
func (s *Store) Get(id string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[id]
}

// List returns summaries of all recorded runs in insertion order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.runs[id].Summarize())
	}
	return res
}

// Len returns the number of recorded runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function. Subscribers are keyed, so unsubscribing one
// never detaches another.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
