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


package events

import (
	"github.com/quillstore/quill/core"
)

// Kind identifies an event variant on the bus.
type Kind string

const (
	KindIngestStarted       Kind = "ingest_started"
	KindSavedToStore        Kind = "saved_to_store"
	KindTextSubmitted       Kind = "text_submitted"
	KindPageExtracted       Kind = "page_extracted"
	KindChunked             Kind = "chunked"
	KindEmbeddingsGenerated Kind = "embeddings_generated"
	KindIngestCompleted     Kind = "ingest_completed"
	KindIngestFailed        Kind = "ingest_failed"
)

// Correlation ties every event of one ingestion together. All pipeline
// events carry the same correlation, so any handler can locate the job
// and the tenant scope it belongs to.
type Correlation struct {
	JobID      string
	OwnerID    string
	ProjectID  string
	Collection string
}

// Event is anything publishable on the bus.
type Event interface {
	Kind() Kind
	Correlation() Correlation
}

// IngestStarted announces that a job has been created and queued.
type IngestStarted struct {
	Corr     Correlation
	Type     core.JobType
	Filename string
	Tier     string
}

func (IngestStarted) Kind() Kind                 { return KindIngestStarted }
func (e IngestStarted) Correlation() Correlation { return e.Corr }

// SavedToStore announces that uploaded PDF bytes have been persisted in
// the blob store. The raw bytes ride along so the extraction handler
// does not need a second store read.
type SavedToStore struct {
	Corr       Correlation
	Hash       string
	Data       []byte
	Filename   string
	ChunkSize  int
	Tier       string
	DocumentID string
	User       map[string]string
}

func (SavedToStore) Kind() Kind                 { return KindSavedToStore }
func (e SavedToStore) Correlation() Correlation { return e.Corr }

// TextSubmitted announces raw text entering the pipeline. Text jobs skip
// the blob store and the extraction stage entirely.
type TextSubmitted struct {
	Corr       Correlation
	Text       string
	ChunkSize  int
	DocumentID string
	User       map[string]string
}

func (TextSubmitted) Kind() Kind                 { return KindTextSubmitted }
func (e TextSubmitted) Correlation() Correlation { return e.Corr }

// PageExtracted carries the text of a single PDF page. Pages are numbered
// from 1; TotalPages lets downstream handlers recognize the final page.
type PageExtracted struct {
	Corr       Correlation
	PageNumber int
	TotalPages int
	Text       string
	ChunkSize  int
	Filename   string
	DocumentID string
	User       map[string]string
}

func (PageExtracted) Kind() Kind                 { return KindPageExtracted }
func (e PageExtracted) Correlation() Correlation { return e.Corr }

// Chunked carries the chunks produced from one page (or from the whole
// text for text jobs, with PageNumber and TotalPages both zero).
type Chunked struct {
	Corr       Correlation
	Chunks     []string
	PageNumber int
	TotalPages int
	Filename   string
	SourceType string
	DocumentID string
	User       map[string]string
}

func (Chunked) Kind() Kind                 { return KindChunked }
func (e Chunked) Correlation() Correlation { return e.Corr }

// EmbeddingsGenerated pairs chunks with their embedding vectors.
// Embeddings[i] belongs to Chunks[i].
type EmbeddingsGenerated struct {
	Corr       Correlation
	Chunks     []string
	Embeddings [][]float32
	PageNumber int
	TotalPages int
	Filename   string
	SourceType string
	DocumentID string
	User       map[string]string
}

func (EmbeddingsGenerated) Kind() Kind                 { return KindEmbeddingsGenerated }
func (e EmbeddingsGenerated) Correlation() Correlation { return e.Corr }

// IngestCompleted announces a job reaching its completed state.
type IngestCompleted struct {
	Corr   Correlation
	Result core.JobResult
}

func (IngestCompleted) Kind() Kind                 { return KindIngestCompleted }
func (e IngestCompleted) Correlation() Correlation { return e.Corr }

// IngestFailed announces a job reaching its failed state, with the stage
// the failure originated in.
type IngestFailed struct {
	Corr    Correlation
	Stage   core.Stage
	Message string
}

func (IngestFailed) Kind() Kind                 { return KindIngestFailed }
func (e IngestFailed) Correlation() Correlation { return e.Corr }
