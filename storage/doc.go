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


// Package storage provides the storage abstraction layer for quill.
//
// This package defines the interfaces that decouple the ingestion
// pipeline from its persistence backend. The pipeline sees four
// surfaces:
//
//   - JobLedger: durable job tracking with forward-only status
//     transitions and monotonic progress
//   - BlobStore: content-addressed TTL staging for uploaded bytes
//   - VectorStore: per-tenant collections of embedded chunks with
//     similarity search
//   - ProjectDirectory: tenant scopes with fixed lifetimes
//
// All public constructors in backend packages return these interfaces
// rather than concrete types, so alternative backends can be swapped in
// and consumers can substitute mocks in tests:
//
//	ledger, err := badger.NewJobLedger(db)  // returns storage.JobLedger
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines; stage handlers for different jobs touch the
// same backend in parallel.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout
// support. Pass context.Background() for operations without specific
// timeout requirements.
package storage
