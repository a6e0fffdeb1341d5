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
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/dlclark/regexp2"
)

// JS renders its argument as JSON or as '%#v'.
func JS(x interface{}) string {
	if x == nil {
		return "null"
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

// JShort renders its argument as JS() but only up to 73 characters.
func JShort(x interface{}) string {
	js := []byte(JS(x))
	if 70 < len(js) {
		js = js[0:70]
		js = append(js, []byte("...")...)
	}
	return string(js)
}

var shell = regexp2.MustCompile(`<<(.*?)>>`, regexp2.None)

// ShellExpand expands shell commands delimited by '<<' and '>>'.  Use
// at your own risk, of course!
//
//	my name is <<whoami>>
func ShellExpand(msg string) (string, error) {
	var failed error
	out, err := shell.ReplaceFunc(msg, func(m regexp2.Match) string {
		sh := m.GroupByNumber(1).String()
		cmd := exec.Command("bash", "-c", sh)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			if failed == nil {
				failed = fmt.Errorf("shell error %s on %s", err, sh)
			}
			return ""
		}
		return string(bytes.TrimRight(out.Bytes(), "\n"))
	}, -1, -1)
	if err != nil {
		return "", err
	}
	if failed != nil {
		return "", failed
	}
	return out, nil
}
