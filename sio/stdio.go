/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package sio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Stdio is a fairly simple Couplings that uses stdin for input and
// stdout for output.  Every line is one utterance in a single
// session.
type Stdio struct {
	// In is coupled to chat input.
	In io.Reader

	// Out is coupled to chat output.
	Out io.Writer

	// SessionID is the session for every line.
	SessionID string

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "bot", "prompt", "debug").
	Tags bool

	// PrintRequests writes each handled Request as JSON.
	PrintRequests bool

	// Color enables colored output.
	Color bool

	Logger *zap.Logger

	// InputEOF will be closed on EOF from stdin.
	InputEOF chan bool

	wg  sync.WaitGroup
	out chan *Result
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		SessionID:   "stdio",
		ShellExpand: shellExpand,
		Color:       true,
		Logger:      zap.NewNop(),
		InputEOF:    make(chan bool),
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop waits until output is complete or was terminated via its
// context.
func (s *Stdio) Stop(ctx context.Context) error {
	if s.out != nil {
		close(s.out)
	}
	s.wg.Wait()
	return nil
}

func (s *Stdio) printf(tag string, c *color.Color, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if s.Tags {
		line = fmt.Sprintf("% 7s %s", tag, line)
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		line = ts + " " + line
	}
	if s.Color && c != nil {
		line = c.Sprint(line)
	}
	fmt.Fprintln(s.Out, line)
}

var (
	botColor    = color.New(color.FgGreen)
	promptColor = color.New(color.FgCyan)
	debugColor  = color.New(color.FgHiBlack)
)

// IO returns channels for reading from stdin and writing to stdout.
func (s *Stdio) IO(ctx context.Context) (chan *Message, chan *Result, chan bool, error) {
	in := make(chan *Message)
	done := make(chan bool)
	s.out = make(chan *Result)

	if s.InputEOF == nil {
		s.InputEOF = make(chan bool)
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		stdin := bufio.NewReader(s.In)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line, err := stdin.ReadString('\n')
			if (err == io.EOF && line == "") || strings.TrimSpace(line) == "quit" {
				close(done)
				close(s.InputEOF)
				return
			}
			if err != nil && err != io.EOF {
				s.Logger.Error("stdin error", zap.Error(err))
				close(done)
				close(s.InputEOF)
				return
			}
			if s.EchoInput {
				s.printf("input", nil, "%s", strings.TrimRight(line, "\n"))
			}
			if strings.HasPrefix(line, "#") || len(strings.TrimSpace(line)) == 0 {
				continue
			}
			if s.ShellExpand {
				if line, err = ShellExpand(line); err != nil {
					s.Logger.Warn("shell expansion failed", zap.Error(err))
					continue
				}
			}

			select {
			case <-ctx.Done():
				return
			case in <- &Message{SessionID: s.SessionID, Message: line}:
			}
		}
	}()

	out := s.out
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-out:
				if r == nil {
					return
				}
				s.printf("bot", botColor, "%s", r.Reply)
				if 0 < len(r.Prompt) {
					s.printf("prompt", promptColor, "[%s]", strings.Join(r.Prompt, " | "))
				}
				if s.PrintRequests {
					s.printf("debug", debugColor, "%s", JS(r.Request))
				}
			}
		}
	}()

	return in, s.out, done, nil
}
