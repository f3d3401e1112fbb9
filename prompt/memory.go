package prompt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store seeded with a fixed set of default
// prompt bodies. Designed for tests and single-process development.
type MemStore struct {
	mu       sync.RWMutex
	defaults map[string]string
	versions map[string][]Version // promptID -> versions, append order
	current  map[string]string    // promptID -> current version id
}

// NewMemStore constructs a MemStore pre-seeded with defaults (promptID ->
// body).
func NewMemStore(defaults map[string]string) *MemStore {
	seeded := make(map[string]string, len(defaults))
	for k, v := range defaults {
		seeded[k] = v
	}
	return &MemStore{
		defaults: seeded,
		versions: make(map[string][]Version),
		current:  make(map[string]string),
	}
}

func (s *MemStore) GetDefault(_ context.Context, promptID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.defaults[promptID]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

func (s *MemStore) GetVersion(_ context.Context, promptID, versionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions[promptID] {
		if v.VersionID == versionID {
			return v.Content, nil
		}
	}
	return "", ErrNotFound
}

func (s *MemStore) CurrentVersion(_ context.Context, promptID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[promptID], nil
}

func (s *MemStore) CreateVersion(_ context.Context, promptID, content, changeNote string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.versions[promptID]
	v := Version{
		PromptID:      promptID,
		VersionID:     uuid.NewString(),
		VersionNumber: len(existing) + 1,
		Content:       content,
		ChangeNote:    changeNote,
		CreatedAt:     time.Now(),
	}
	s.versions[promptID] = append(existing, v)
	s.current[promptID] = v.VersionID
	return v.VersionID, nil
}

func (s *MemStore) Reset(_ context.Context, promptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, promptID)
	return nil
}
