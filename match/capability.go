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

package match

import (
	"github.com/dlclark/regexp2"
)

// CompileFunc makes a Matcher for trigger text.
type CompileFunc func(text string, defs Definitions) (Matcher, error)

// Capability is a custom pattern syntax.
//
// When a trigger matches the Activation expression, the capability's
// Compile function takes over compilation of that trigger entirely.
type Capability struct {
	Name       string
	Activation *regexp2.Regexp
	Compile    CompileFunc
}

// NewCapability makes a Capability with an activation expression.
func NewCapability(name, activation string, f CompileFunc) (*Capability, error) {
	re, err := compile(activation)
	if err != nil {
		return nil, err
	}
	return &Capability{
		Name:       name,
		Activation: re,
		Compile:    f,
	}, nil
}

// Activates reports whether the capability should compile the text.
func (c *Capability) Activates(text string) bool {
	if c.Activation == nil {
		return false
	}
	ok, err := c.Activation.MatchString(text)
	return err == nil && ok
}
