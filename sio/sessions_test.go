package sio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions(t *testing.T) {
	then := time.Date(2019, 3, 4, 9, 0, 0, 0, time.UTC)
	now := then
	s := NewSessions(time.Minute)
	s.now = func() time.Time { return now }

	req := s.Next("a", "hello")
	assert.Equal(t, "a", req.SessionID)
	req.Variables["name"] = "Vu"
	s.Put("a", req)

	next := s.Next("a", "again")
	assert.Equal(t, "again", next.Message)
	assert.Equal(t, "Vu", next.Variables["name"])
	assert.Equal(t, "a", next.SessionID)

	now = then.Add(30 * time.Second)
	_, have := s.Get("a")
	require.True(t, have)

	s.Put("b", s.Next("b", "hi"))
	now = then.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	now = then.Add(time.Hour)
	_, have = s.Get("b")
	assert.False(t, have)
	assert.Equal(t, 0, s.Len())
}

func TestSessionIDs(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
