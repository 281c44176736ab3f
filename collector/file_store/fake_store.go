package file_store

import (
	"context"
	"path"
	"sync"
)

// FakeFileStore records downloads in memory. BeforeStore, when set, runs at
// the start of every FetchAndStore; tests use it to hold downloads open or to
// fail them.
type FakeFileStore struct {
	BeforeStore func(ctx context.Context, url string) error

	mu      sync.Mutex
	files   map[string]bool
	fetched []string
}

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{files: map[string]bool{}}
}

func (s *FakeFileStore) FetchAndStore(ctx context.Context, url string) (string, error) {
	if s.BeforeStore != nil {
		if err := s.BeforeStore(ctx, url); err != nil {
			return "", err
		}
	}
	p := "/fake/" + path.Base(url)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = true
	s.fetched = append(s.fetched, url)
	return p, nil
}

func (s *FakeFileStore) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[p]
}

// Remove drops one stored file, as if evicted from disk.
func (s *FakeFileStore) Remove(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, p)
}

// Fetched lists every downloaded url in completion order.
func (s *FakeFileStore) Fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func (s *FakeFileStore) CleanUp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = map[string]bool{}
	return nil
}
