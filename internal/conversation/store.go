package conversation

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	DefaultWindow = 20
	shardCount    = 32
)

type entry struct {
	turns   []Turn
	touched time.Time
}

type shard struct {
	mu    sync.Mutex
	items map[string]*entry
}

// Store is an in-memory Repo. Users are spread over lock-striped shards, so
// one user's updates are serialized while different users rarely contend.
type Store struct {
	shards [shardCount]shard
	window int
	now    func() time.Time
}

func NewStore(window int) *Store {
	s := &Store{
		window: NormalizeWindow(window),
		now:    time.Now,
	}
	for i := range s.shards {
		s.shards[i].items = make(map[string]*entry)
	}
	return s
}

// NormalizeWindow keeps the window even so user/model pairs are never split.
func NormalizeWindow(n int) int {
	if n < 2 {
		return DefaultWindow
	}
	return n - n%2
}

func (s *Store) shardFor(userID string) *shard {
	return &s.shards[xxh3.HashString(userID)%shardCount]
}

func (s *Store) Window() int {
	return s.window
}

func (s *Store) GetOrCreate(userID string) []Turn {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.items[userID]
	if !ok {
		e = &entry{}
		sh.items[userID] = e
	}
	e.touched = s.now()

	return cloneTurns(e.turns)
}

func (s *Store) Commit(userID string, userTurn, modelTurn Turn) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.items[userID]
	if !ok {
		e = &entry{}
		sh.items[userID] = e
	}

	turns := append(e.turns, userTurn, modelTurn)
	if len(turns) > s.window {
		// fresh backing array, otherwise evicted turns stay reachable
		turns = cloneTurns(turns[len(turns)-s.window:])
	}
	e.turns = turns
	e.touched = s.now()
}

func (s *Store) Snapshot(userID string) ([]Turn, bool) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.items[userID]
	if !ok {
		return nil, false
	}
	return cloneTurns(e.turns), true
}

// Len returns the number of users with a registered conversation.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.items)
		sh.mu.Unlock()
	}
	return n
}

// Sweep drops conversations untouched for longer than idle and returns how many were removed.
func (s *Store) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idle)
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, e := range sh.items {
			if e.touched.Before(cutoff) {
				delete(sh.items, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func cloneTurns(in []Turn) []Turn {
	out := make([]Turn, len(in))
	copy(out, in)
	return out
}
