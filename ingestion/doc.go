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


// Package ingestion wires the document pipeline together: requests come
// in through the PDF and text strategies, and stage handlers chained
// over the event bus carry each job from saved bytes to stored vectors.
//
// Stage order for a PDF job:
//
//	IngestPDF -> SavedToStore -> PageExtracted (per page) -> Chunked ->
//	EmbeddingsGenerated -> stored -> IngestCompleted
//
// Text jobs skip the blob store and extraction, entering at
// TextSubmitted. A failure at any stage moves the job to failed and
// publishes IngestFailed; later events for that job find the terminal
// status and stop.
package ingestion
