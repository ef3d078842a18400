package artifact

import (
	"bytes"
	"sort"
	"sync"
)

// InMemoryStore implements core.ArtifactStore with per-session byte blobs
// held in process memory. It is the kernel's default artifact store and backs
// InvocationContext.SaveArtifact / GetArtifact in tests and prototypes;
// nothing survives a restart and no quotas or eviction are enforced.
//
// All byte slices are copied on the way in and out, so neither callers nor
// the store can mutate each other's buffers.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]map[string][]byte)}
}

// Save stores or overwrites the artifact under the session.
func (s *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blobs, ok := s.sessions[sessionID]
	if !ok {
		blobs = make(map[string][]byte)
		s.sessions[sessionID] = blobs
	}
	blobs[artifactID] = bytes.Clone(data)
	return nil
}

// Get returns a copy of the artifact bytes, or ErrNotFound.
func (s *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[sessionID][artifactID]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(data), nil
}

// List returns the session's artifact ids sorted lexicographically. A session
// with no artifacts yields an empty slice, not an error.
func (s *InMemoryStore) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blobs := s.sessions[sessionID]
	ids := make([]string, 0, len(blobs))
	for id := range blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the artifact, or returns ErrNotFound if it does not exist.
func (s *InMemoryStore) Delete(sessionID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID][artifactID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions[sessionID], artifactID)
	return nil
}
