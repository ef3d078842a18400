package process

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrCheckpointNotFound is returned by StateStore.Load when no checkpoint
// exists for the process ID.
var ErrCheckpointNotFound = errors.New("process checkpoint not found")

// StepCheckpoint is the persisted state of one stateful step.
type StepCheckpoint struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Checkpoint is a consistent snapshot of a running process taken between
// supersteps: step states plus the partially filled function inputs.
type Checkpoint struct {
	ProcessID   string                    `json:"process_id"`
	ProcessName string                    `json:"process_name"`
	Superstep   int                       `json:"superstep"`
	SavedAt     time.Time                 `json:"saved_at"`
	Steps       map[string]StepCheckpoint `json:"steps,omitempty"`

	// Pending holds accumulated edge-group inputs: step -> function ->
	// parameter -> value.
	Pending map[string]map[string]map[string]any `json:"pending,omitempty"`

	// Queue holds deliveries that were ready but not yet executed.
	Queue []Delivery `json:"queue,omitempty"`
}

// Delivery is one ready-to-run function invocation.
type Delivery struct {
	StepID   string         `json:"step_id"`
	Function string         `json:"function"`
	Args     map[string]any `json:"args,omitempty"`
}

// Clone returns a deep copy of the checkpoint. The runtime keeps routing
// state in live maps, so snapshots and loads must not alias them.
func (cp *Checkpoint) Clone() *Checkpoint {
	out := *cp
	if cp.Steps != nil {
		out.Steps = make(map[string]StepCheckpoint, len(cp.Steps))
		for id, scp := range cp.Steps {
			scp.State = append(json.RawMessage(nil), scp.State...)
			out.Steps[id] = scp
		}
	}
	out.Pending = ClonePending(cp.Pending)
	out.Queue = CloneQueue(cp.Queue)
	return &out
}

// ClonePending deep-copies accumulated edge-group inputs.
func ClonePending(pending map[string]map[string]map[string]any) map[string]map[string]map[string]any {
	if pending == nil {
		return nil
	}
	out := make(map[string]map[string]map[string]any, len(pending))
	for stepID, functions := range pending {
		fns := make(map[string]map[string]any, len(functions))
		for fn, params := range functions {
			args := make(map[string]any, len(params))
			for p, v := range params {
				args[p] = v
			}
			fns[fn] = args
		}
		out[stepID] = fns
	}
	return out
}

// CloneQueue copies queued deliveries including their argument maps.
func CloneQueue(queue []Delivery) []Delivery {
	if queue == nil {
		return nil
	}
	out := make([]Delivery, len(queue))
	for i, d := range queue {
		if d.Args != nil {
			args := make(map[string]any, len(d.Args))
			for k, v := range d.Args {
				args[k] = v
			}
			d.Args = args
		}
		out[i] = d
	}
	return out
}

// StateStore persists checkpoints keyed by process ID. Implementations must
// be safe for concurrent use.
type StateStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, processID string) (*Checkpoint, error)
	Delete(ctx context.Context, processID string) error
}

// MemoryStateStore keeps checkpoints in process memory. Suitable for tests
// and for processes that do not need to survive restarts.
type MemoryStateStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{checkpoints: make(map[string]*Checkpoint)}
}

// Save implements StateStore. The checkpoint is cloned so later runtime
// mutations cannot reach the stored snapshot.
func (s *MemoryStateStore) Save(_ context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ProcessID] = cp.Clone()
	return nil
}

// Load implements StateStore. Returned checkpoints are clones, safe for the
// caller to adopt and mutate.
func (s *MemoryStateStore) Load(_ context.Context, processID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[processID]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	return cp.Clone(), nil
}

// Delete implements StateStore.
func (s *MemoryStateStore) Delete(_ context.Context, processID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, processID)
	return nil
}
