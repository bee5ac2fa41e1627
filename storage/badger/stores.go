// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "errors"

// Stores groups every repository sharing one backend.
type Stores struct {
	Backend   *Backend
	Documents *DocumentRepository
	Topics    *TopicRepository
	Sessions  *SessionRepository
	Jobs      *JobRepository
	Cache     *CacheStore
	Vectors   *VectorStore
}

// OpenStores opens a backend at path and creates all repositories on it.
// An empty path with inMemory set gives a throwaway store.
func OpenStores(path string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	stores := &Stores{
		Backend: backend,
		Jobs:    NewJobRepository(backend),
		Cache:   NewCacheStore(backend),
		Vectors: NewVectorStore(backend),
	}
	if stores.Documents, err = NewDocumentRepository(backend); err != nil {
		stores.Close()
		return nil, err
	}
	if stores.Topics, err = NewTopicRepository(backend); err != nil {
		stores.Close()
		return nil, err
	}
	if stores.Sessions, err = NewSessionRepository(backend); err != nil {
		stores.Close()
		return nil, err
	}
	return stores, nil
}

// NewMemoryStores creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryStores() (*Stores, error) {
	return OpenStores("", true)
}

// Close releases every repository, then the backend.
func (s *Stores) Close() error {
	var errs []error
	if s.Documents != nil {
		errs = append(errs, s.Documents.Close())
	}
	if s.Topics != nil {
		errs = append(errs, s.Topics.Close())
	}
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
	}
	errs = append(errs, s.Jobs.Close(), s.Vectors.Close(), s.Backend.Close())
	return errors.Join(errs...)
}
