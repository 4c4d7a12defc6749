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


// Package chunk splits extracted text into embedding-sized pieces along
// natural boundaries.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the token budget used when the caller passes a
// non-positive chunk size.
const DefaultChunkSize = 500

// charsPerToken approximates tokens without running a tokenizer; the
// budget only needs to keep chunks inside the embedding model's window.
const charsPerToken = 4

// Split breaks text into chunks of at most chunkSize tokens.
//
// Paragraphs are the preferred boundary; a paragraph that overflows the
// budget on its own is split at sentence ends instead, and a single
// sentence longer than the whole budget is split mid-sentence as a last
// resort. Empty or whitespace-only input yields no chunks.
func Split(text string, chunkSize int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	budget := chunkSize * charsPerToken

	var units []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len(paragraph) <= budget {
			units = append(units, paragraph)
			continue
		}
		for _, sentence := range splitSentences(paragraph) {
			if len(sentence) <= budget {
				units = append(units, sentence)
				continue
			}
			for len(sentence) > budget {
				// Back the cut up to a rune boundary so the hard split
				// never produces invalid UTF-8.
				cut := budget
				for cut > 0 && !utf8.RuneStart(sentence[cut]) {
					cut--
				}
				if cut == 0 {
					cut = budget
				}
				units = append(units, sentence[:cut])
				sentence = sentence[cut:]
			}
			if sentence != "" {
				units = append(units, sentence)
			}
		}
	}

	var chunks []string
	var current strings.Builder
	for _, unit := range units {
		// +2 accounts for the joining blank line.
		if current.Len() > 0 && current.Len()+2+len(unit) > budget {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences splits on sentence-ending punctuation followed by a
// space, keeping the terminator with its sentence so no characters
// other than the separating spaces are lost.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && text[i+1] == ' ' {
			sentence := strings.TrimSpace(text[start : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
