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

// Package botscript builds rule-based chat bots from botscript
// scripts.
//
// The engine is in package 'core'.  This package wires a core.Bot
// with its collaborators (the ECMAScript sandbox, HTTP commands,
// templates, and includes) according to a Conf.  Command-line tools
// are in `cmd`.
package botscript

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/yeuai/botscript/core"
	"github.com/yeuai/botscript/interpreters/ecmascript"
	"github.com/yeuai/botscript/sio"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

// Conf is the configuration for a bot and its couplings.
type Conf struct {
	// Scripts are the locations of the bot's scripts.  They are
	// loaded like includes, so URLs work.
	Scripts []string `yaml:"scripts"`

	// Listen is the HTTP service's address.  Empty means no
	// service.
	Listen string `yaml:"listen,omitempty"`

	// WebSockets enables the /ws and /ws/events endpoints.
	WebSockets bool `yaml:"websockets,omitempty"`

	MQTT *MQTTConf `yaml:"mqtt,omitempty"`

	Commands CommandsConf `yaml:"commands,omitempty"`

	Sandbox SandboxConf `yaml:"sandbox,omitempty"`

	Includes IncludesConf `yaml:"includes,omitempty"`

	// SessionTTL is how long an idle conversation is remembered.
	SessionTTL time.Duration `yaml:"sessionTTL,omitempty"`

	// Limit bounds forwards and flow injections in one turn.
	Limit int `yaml:"limit,omitempty"`

	// LogLevel is a zap level: debug, info, warn, error.
	LogLevel string `yaml:"logLevel,omitempty"`

	// Development makes the logger human-friendly.
	Development bool `yaml:"development,omitempty"`
}

// MQTTConf configures the MQTT couplings.
type MQTTConf struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"clientId,omitempty"`
	Username  string        `yaml:"username,omitempty"`
	Password  string        `yaml:"password,omitempty"`
	KeepAlive time.Duration `yaml:"keepAlive,omitempty"`

	// Topics are subscriptions, each optionally with a ":qos"
	// suffix.
	Topics []string `yaml:"topics"`

	ReplyTopic string `yaml:"replyTopic,omitempty"`

	// EventTopic is the prefix for broadcast events.  Empty
	// means no broadcasting.
	EventTopic string `yaml:"eventTopic,omitempty"`
}

// CommandsConf configures the HTTP command invoker.
type CommandsConf struct {
	BaseURL string            `yaml:"baseURL,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// SandboxConf configures expression evaluation and plugin code.
type SandboxConf struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Disabled makes all plugin code inert.  Conditions are
	// still evaluated.
	Disabled bool `yaml:"disabled,omitempty"`
}

// IncludesConf configures "/include" loading.
type IncludesConf struct {
	// Dir is where relative locations are found.
	Dir string `yaml:"dir,omitempty"`

	// Cache, if not empty, is a bbolt file that keeps the last
	// good copy of every included script.
	Cache string `yaml:"cache,omitempty"`
}

// DefaultConf returns a Conf with reasonable defaults.
func DefaultConf() *Conf {
	return &Conf{
		SessionTTL: sio.DefaultSessionTTL,
		Limit:      core.DefaultControl.Limit,
		LogLevel:   "info",
		Sandbox: SandboxConf{
			Timeout: ecmascript.DefaultTimeout,
		},
	}
}

// LoadConf reads a YAML Conf file over the defaults.
func LoadConf(filename string) (*Conf, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConf(bs)
}

// ParseConf parses YAML over the defaults.  Unknown keys are errors.
func ParseConf(bs []byte) (*Conf, error) {
	c := DefaultConf()
	if err := yaml.UnmarshalStrict(bs, c); err != nil {
		return nil, fmt.Errorf("bad conf: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the Conf for obvious problems.
func (c *Conf) Validate() error {
	if c.MQTT != nil {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt needs a broker")
		}
		if len(c.MQTT.Topics) == 0 {
			return fmt.Errorf("mqtt needs at least one topic")
		}
	}
	if c.Limit < 0 {
		return fmt.Errorf("negative limit %d", c.Limit)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); c.LogLevel != "" && err != nil {
		return err
	}
	return nil
}

// NewLogger makes a zap.Logger at the given level.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	if level != "" {
		l, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(l)
	}
	// Stdout is for the conversation.
	config.OutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
