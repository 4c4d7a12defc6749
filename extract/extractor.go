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


// Package extract turns uploaded document bytes into page text.
package extract

import "errors"

var (
	// ErrNotPDF indicates the bytes do not start with a PDF header.
	ErrNotPDF = errors.New("not a pdf document")

	// ErrMalformed indicates the document could not be parsed.
	ErrMalformed = errors.New("malformed document")

	// ErrNoPages indicates the document contains no pages.
	ErrNoPages = errors.New("document has no pages")
)

// Document is an opened source whose text is read page by page.
// Pages are numbered from 1.
type Document interface {
	TotalPages() int
	Text(page int) (string, error)
}

// Extractor opens raw bytes into a Document.
type Extractor interface {
	Open(data []byte) (Document, error)
}
