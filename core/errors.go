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
	"errors"
	"fmt"
	"strings"
)

// ParseError reports the block that Parse couldn't handle.
type ParseError struct {
	// Block is the index of the block in the (normalized) source.
	Block  int
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	src := e.Source
	if i := strings.IndexByte(src, '\n'); 0 <= i {
		src = src[:i] + " ..."
	}
	return fmt.Sprintf("block %d (%s): %s", e.Block, src, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// BadCommand occurs when a command head doesn't have two or three
// tokens.
type BadCommand struct {
	Head string
}

func (e *BadCommand) Error() string {
	return `invalid command "` + e.Head + `": want "name url" or "name METHOD url"`
}

// UnknownMarker occurs when a block starts with a character that
// doesn't introduce any kind of Struct.
type UnknownMarker struct {
	Line string
}

func (e *UnknownMarker) Error() string {
	return `unknown block marker in "` + e.Line + `"`
}

// EmptyBlock occurs when ParseStruct gets nothing to parse.
var EmptyBlock = errors.New("empty block")

// ErrUnknownFormat is returned by a Formatter that doesn't know the
// requested format.
var ErrUnknownFormat = errors.New("unknown format")

// ErrNoInvoker occurs when a command action runs without an Invoker.
var ErrNoInvoker = errors.New("no command invoker")

// UnknownCommand occurs when a command action names a command that
// isn't defined.
type UnknownCommand struct {
	Name string
}

func (e *UnknownCommand) Error() string {
	return `command "` + e.Name + `" not defined`
}
