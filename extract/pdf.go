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


package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor opens PDF bytes for per-page text extraction.
type PDFExtractor struct{}

var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Open parses the PDF structure. The underlying parser panics on some
// malformed inputs, so parsing runs behind a recover.
func (e *PDFExtractor) Open(data []byte) (doc Document, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, ErrNotPDF
	}
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if reader.NumPage() == 0 {
		return nil, ErrNoPages
	}
	return &pdfDocument{reader: reader}, nil
}

type pdfDocument struct {
	reader *pdf.Reader
}

func (d *pdfDocument) TotalPages() int {
	return d.reader.NumPage()
}

// Text extracts one page's plain text. A page that cannot be decoded
// yields empty text rather than failing the document; downstream stages
// skip empty pages.
func (d *pdfDocument) Text(page int) (text string, err error) {
	if page < 1 || page > d.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", page, d.reader.NumPage())
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = nil
		}
	}()

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	content, err := p.GetPlainText(nil)
	if err != nil {
		return "", nil
	}
	return content, nil
}
