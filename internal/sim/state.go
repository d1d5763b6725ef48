// Package sim holds the server-side model states and the loop that advances
// and broadcasts them.
package sim

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// DefaultModel is the key the loop moves.
const DefaultModel = "model_1"

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityRotation 表示没有旋转。
var IdentityRotation = Quaternion{W: 1}

type ModelState struct {
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

// States maps model names to their state; it marshals to
// {"model_1":{"position":{...},"rotation":{...}}}.
type States map[string]ModelState

func (s States) clone() States {
	out := make(States, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func InitialStates() States {
	return States{
		DefaultModel: {Rotation: IdentityRotation},
	}
}

// Store is a double buffer: readers always see the last committed States,
// writers mutate a private copy and commit it in one step.
type Store struct {
	mu      sync.Mutex // serializes writers
	current atomic.Value
}

func NewStore(initial States) *Store {
	if initial == nil {
		initial = InitialStates()
	}
	s := &Store{}
	s.current.Store(initial.clone())
	return s
}

// Snapshot returns a copy of the committed states.
func (s *Store) Snapshot() States {
	return s.current.Load().(States).clone()
}

// Update applies fn to a copy of the committed states and commits the result.
func (s *Store) Update(fn func(States)) States {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.Load().(States).clone()
	fn(next)
	s.current.Store(next)
	return next.clone()
}

// MarshalSnapshot encodes the committed states as JSON.
func (s *Store) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.current.Load().(States))
}
