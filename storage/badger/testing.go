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

// MemoryStores bundles badger-backed stores sharing one in-memory backend.
type MemoryStores struct {
	Backend    *Backend
	Cache      *CacheStore
	Index      *IndexStore
	Workspaces *WorkspaceRepository
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must close the returned stores when done.
func NewMemoryStores() (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return &MemoryStores{
		Backend:    backend,
		Cache:      NewCacheStore(backend),
		Index:      NewIndexStore(backend),
		Workspaces: NewWorkspaceRepository(backend),
	}, nil
}

// Close closes the shared backend.
func (m *MemoryStores) Close() error {
	return m.Backend.Close()
}
