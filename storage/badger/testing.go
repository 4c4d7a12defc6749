// Copyright 2025 Quillstore Authors
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

// MemoryStores bundles all storage surfaces over one in-memory backend
// for testing.
type MemoryStores struct {
	Backend  *Backend
	Jobs     *JobLedger
	Blobs    *BlobStore
	Vectors  *VectorStore
	Projects *ProjectDirectory
}

// NewMemoryStores creates in-memory stores for testing. Caller must
// call Close when done.
func NewMemoryStores() (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	jobs, err := NewJobLedger(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	blobs, err := NewBlobStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	vectors, err := NewVectorStore(backend)
	if err != nil {
		blobs.Close()
		backend.Close()
		return nil, err
	}
	projects, err := NewProjectDirectory(backend)
	if err != nil {
		blobs.Close()
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		Backend:  backend,
		Jobs:     jobs,
		Blobs:    blobs,
		Vectors:  vectors,
		Projects: projects,
	}, nil
}

// Close releases every store and the backend.
func (m *MemoryStores) Close() error {
	m.Jobs.Close()
	m.Blobs.Close()
	m.Vectors.Close()
	m.Projects.Close()
	return m.Backend.Close()
}
