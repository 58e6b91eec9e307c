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

// Package text canonicalizes free text before it is tokenized or embedded.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize decomposes text to NFKD, drops every rune outside printable
// ASCII, collapses whitespace runs to a single space and trims the ends.
// Whitespace runes outside the printable range (tabs, newlines, non-breaking
// spaces) are treated as separators so adjacent words never fuse.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	decomposed := norm.NFKD.String(s)
	printable := strings.Map(func(r rune) rune {
		switch {
		case r >= 0x20 && r <= 0x7e:
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, decomposed)
	return strings.Join(strings.Fields(printable), " ")
}

// Tokenize lower-cases s, replaces everything except ASCII letters, digits
// and whitespace with a space, then splits on whitespace.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, s)
	return strings.Fields(cleaned)
}
