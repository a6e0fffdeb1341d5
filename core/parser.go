/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"strings"
)

// Normalize prepares script text for splitting into blocks.
//
// Line endings are unified, comment lines (starting with '#') are
// dropped, continuation lines (starting with '^') are joined onto
// the previous line, a directive line that follows another line
// starts a new block, and indentation is removed.
//
// The contents of fenced code blocks are only trimmed.
func Normalize(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")

	var (
		acc   = make([]string, 0, strings.Count(src, "\n")+1)
		fence = ""
	)

	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)

		if fence != "" {
			acc = append(acc, line)
			if strings.HasPrefix(line, fence) {
				fence = ""
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, Fence1):
			fence = Fence1
		case strings.HasPrefix(line, Fence2):
			fence = Fence2
		case strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "^"):
			if n := len(acc); 0 < n && acc[n-1] != "" {
				acc[n-1] += " " + strings.TrimSpace(line[1:])
				continue
			}
		case strings.HasPrefix(line, "/"):
			if n := len(acc); 0 < n && acc[n-1] != "" {
				acc = append(acc, "")
			}
		}

		acc = append(acc, line)
	}

	return acc
}

// Blocks splits script text into normalized blocks.
//
// Blocks are separated by blank lines (outside of fenced code).
func Blocks(src string) []string {
	var (
		blocks []string
		block  []string
		fence  = ""
	)

	flush := func() {
		if 0 < len(block) {
			blocks = append(blocks, strings.Join(block, "\n"))
			block = nil
		}
	}

	for _, line := range Normalize(src) {
		if fence != "" {
			block = append(block, line)
			if strings.HasPrefix(line, fence) {
				fence = ""
			}
			continue
		}
		switch {
		case line == "":
			flush()
			continue
		case strings.HasPrefix(line, Fence1):
			fence = Fence1
		case strings.HasPrefix(line, Fence2):
			fence = Fence2
		}
		block = append(block, line)
	}
	flush()

	return blocks
}

// Parse parses all of the blocks in the given text.
//
// If any block fails to parse, Parse returns a ParseError for the
// first such block and no Structs.
func Parse(src string) ([]*Struct, error) {
	blocks := Blocks(src)
	acc := make([]*Struct, 0, len(blocks))
	for i, block := range blocks {
		s, err := ParseStruct(block)
		if err != nil {
			return nil, &ParseError{
				Block:  i,
				Source: block,
				Err:    err,
			}
		}
		acc = append(acc, s)
	}
	return acc, nil
}
