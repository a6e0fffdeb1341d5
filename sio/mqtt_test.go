package sio

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doneToken is an mqtt.Token that's already done.
type doneToken struct {
	mqtt.Token
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

type published struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// fakeClient records publications.  Other methods aren't
// implemented.
type fakeClient struct {
	mqtt.Client

	sync.Mutex
	published []published
	fail      error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.Lock()
	defer c.Unlock()
	c.published = append(c.published, published{topic, qos, payload.([]byte)})
	return doneToken{err: c.fail}
}

func (c *fakeClient) Disconnect(quiesce uint) {}

func newFakeMQTT() (*MQTT, *fakeClient) {
	c := &fakeClient{}
	m := NewMQTT(NewMQTTOptions("tcp://localhost:1883", "", "", "", time.Minute))
	m.Client = c
	m.InTimeout = time.Second
	return m, c
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in    string
		topic string
		qos   byte
	}{
		{"botscript/in", "botscript/in", 0},
		{"botscript/in:1", "botscript/in", 1},
		{" botscript/in:2 ", "botscript/in", 2},
		{"botscript/in:7", "botscript/in:7", 0},
		{"a:b", "a:b", 0},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			topic, qos := parseTopic(test.in)
			assert.Equal(t, test.topic, topic)
			assert.Equal(t, test.qos, qos)
		})
	}
}

func TestMQTTConsume(t *testing.T) {
	m, _ := newFakeMQTT()
	ctx := context.Background()

	got := make(chan *Message, 2)
	go func() {
		for i := 0; i < 2; i++ {
			got <- <-m.incoming
		}
	}()

	m.consume(ctx, "chat/alice", []byte("hello bot"))
	m.consume(ctx, "chat/any", []byte(`{"sessionId":"bob","message":"hi","replyTo":"chat/bob/reply"}`))

	msg := <-got
	assert.Equal(t, &Message{SessionID: "chat/alice", Message: "hello bot"}, msg)
	msg = <-got
	assert.Equal(t, &Message{SessionID: "bob", Message: "hi", ReplyTo: "chat/bob/reply"}, msg)
}

func TestMQTTStall(t *testing.T) {
	m, _ := newFakeMQTT()
	m.InTimeout = 10 * time.Millisecond
	m.consume(context.Background(), "chat", []byte("nobody listening"))
}

func TestMQTTOutLoop(t *testing.T) {
	m, c := newFakeMQTT()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.outLoop(ctx)
	}()

	m.outbound <- &Result{SessionID: "a", Reply: "Hello human!"}
	m.outbound <- &Result{SessionID: "b", Reply: "Hi", ReplyTo: "chat/b:1"}
	cancel()
	<-done

	c.Lock()
	defer c.Unlock()
	require.Len(t, c.published, 2)
	assert.Equal(t, "botscript/reply", c.published[0].Topic)
	assert.Equal(t, "chat/b", c.published[1].Topic)
	assert.Equal(t, byte(1), c.published[1].QoS)

	var r Result
	require.NoError(t, json.Unmarshal(c.published[0].Payload, &r))
	assert.Equal(t, "Hello human!", r.Reply)
}

func TestMQTTBroadcast(t *testing.T) {
	m, c := newFakeMQTT()
	m.Broadcast("command:error", "weather", errors.New("refused"))

	c.fail = errors.New("broker gone")
	m.Broadcast("reply")

	c.Lock()
	defer c.Unlock()
	require.Len(t, c.published, 2)
	assert.Equal(t, "botscript/events/command/error", c.published[0].Topic)
	assert.JSONEq(t, `{"event":"command:error","args":["weather","refused"]}`, string(c.published[0].Payload))
}
