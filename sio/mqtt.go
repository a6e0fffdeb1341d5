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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTT is a Couplings for an MQTT broker.
//
// An in-bound payload is either a JSON Message or plain text.  When
// a Message doesn't have a session id, the topic is used.  Results
// are published as JSON to the Message's ReplyTo or, by default, to
// ReplyTopic.
type MQTT struct {
	Client mqtt.Client

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint

	// SubTopics is a comma-separated list of "topic[:qos]".
	SubTopics string

	// ReplyTopic is the default out-bound topic.
	ReplyTopic string

	// EventTopic is the prefix for topics used by Broadcast.
	EventTopic string

	// InTimeout limits how long an in-bound message can wait to be
	// queued.
	InTimeout time.Duration

	Logger *zap.Logger

	incoming chan *Message
	outbound chan *Result
	done     chan bool
	wg       sync.WaitGroup
}

// NewMQTT makes MQTT couplings with a client based on the given
// options.
func NewMQTT(opts *mqtt.ClientOptions) *MQTT {
	return &MQTT{
		Client:     mqtt.NewClient(opts),
		Quiesce:    100,
		ReplyTopic: "botscript/reply",
		EventTopic: "botscript/events",
		InTimeout:  5 * time.Second,
		Logger:     zap.NewNop(),
		incoming:   make(chan *Message),
		outbound:   make(chan *Result),
		done:       make(chan bool),
	}
}

// NewMQTTOptions makes client options with the usual mosquitto_sub
// parameters.
func NewMQTTOptions(broker, clientID, username, password string, keepAlive time.Duration) *mqtt.ClientOptions {
	if clientID == "" {
		clientID = "botscript-" + NewSessionID()[:8]
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	return opts
}

// parseTopic parses "topic:qos".
func parseTopic(s string) (string, byte) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return s, 0
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 || 2 < n {
		return s, 0
	}
	return s[:i], byte(n)
}

func (c *MQTT) consume(ctx context.Context, topic string, payload []byte) {
	msg := &Message{}
	if err := json.Unmarshal(payload, msg); err != nil || msg.Message == "" {
		msg = &Message{
			Message: string(payload),
		}
	}
	if msg.SessionID == "" {
		msg.SessionID = topic
	}

	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
		c.Logger.Warn("not queuing message due to ctx.Done()", zap.String("topic", topic))
	case c.incoming <- msg:
		c.Logger.Debug("queued incoming", zap.String("topic", topic), zap.ByteString("payload", payload))
	case <-to.C:
		c.Logger.Warn("not queuing message due to stall",
			zap.String("topic", topic),
			zap.ByteString("payload", payload))
	}
}

// Start creates the MQTT session and starts publishing results.
func (c *MQTT) Start(ctx context.Context) error {
	c.Logger.Info("connecting to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	c.Logger.Info("connected to broker")

	handler := func(client mqtt.Client, msg mqtt.Message) {
		c.consume(ctx, msg.Topic(), msg.Payload())
	}

	for _, topic := range strings.Split(c.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		if t := c.Client.Subscribe(topic, qos, handler); t.Wait() && t.Error() != nil {
			return t.Error()
		}
		c.Logger.Info("subscribed", zap.String("topic", topic), zap.Int("qos", int(qos)))
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.outLoop(ctx)
	}()

	return nil
}

// IO returns the in-bound and out-bound channels.
func (c *MQTT) IO(ctx context.Context) (chan *Message, chan *Result, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

// Stop waits for the out-bound loop, which ends with Start's
// context, and then disconnects.
func (c *MQTT) Stop(ctx context.Context) error {
	c.wg.Wait()
	c.Client.Disconnect(c.Quiesce)
	return nil
}

func (c *MQTT) publish(topic string, x interface{}) error {
	topic, qos := parseTopic(topic)
	js, err := json.Marshal(x)
	if err != nil {
		return err
	}
	token := c.Client.Publish(topic, qos, false, js)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	c.Logger.Debug("published", zap.String("topic", topic), zap.String("payload", JShort(x)))
	return nil
}

// outLoop forwards results to the MQTT broker.
func (c *MQTT) outLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.outbound:
			if r == nil {
				return
			}
			topic := r.ReplyTo
			if topic == "" {
				topic = c.ReplyTopic
			}
			if err := c.publish(topic, r); err != nil {
				c.Logger.Error("publish failed", zap.Error(err))
			}
		}
	}
}

// Broadcast publishes a bot event to EventTopic/event.  It's a
// core.Listener.
func (c *MQTT) Broadcast(event string, args ...interface{}) {
	if c.EventTopic == "" {
		return
	}
	topic := c.EventTopic + "/" + strings.ReplaceAll(event, ":", "/")
	if err := c.publish(topic, EventMessage(event, args...)); err != nil {
		c.Logger.Warn("event broadcast failed", zap.String("event", event), zap.Error(err))
	}
}

// EventMessage makes a JSON-friendly representation of an event.
func EventMessage(event string, args ...interface{}) map[string]interface{} {
	xs := make([]interface{}, len(args))
	for i, x := range args {
		if err, is := x.(error); is {
			x = err.Error()
		}
		xs[i] = x
	}
	return map[string]interface{}{
		"event": event,
		"args":  xs,
	}
}
