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
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Service is an HTTP service for a Chat.
//
//	GET  /ping        "pong"
//	POST /api/chat    {"sessionId":"...","message":"hi"} returns a Result
//	GET  /ws          websocket; each frame is a message, each reply a Result
//	GET  /ws/events   websocket firehose of bot events (see Broadcast)
//
// A websocket connection is one session unless its frames are JSON
// Messages with their own session ids.
type Service struct {
	Chat *Chat

	// Addr is the listen address.
	Addr string

	// WebSockets enables the websocket endpoints.
	WebSockets bool

	Logger *zap.Logger

	upgrader websocket.Upgrader

	// firehose connections.
	conns sync.Map
}

// NewService makes a Service for the chat with websockets enabled.
func NewService(chat *Chat, addr string) *Service {
	return &Service{
		Chat:       chat,
		Addr:       addr,
		WebSockets: true,
		Logger:     zap.NewNop(),
	}
}

func (s *Service) puntf(w http.ResponseWriter, status int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.Logger.Warn("request failed", zap.String("error", msg))

	js, err := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	if err != nil {
		js = []byte(msg)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, "%s\n", js)
}

// Handler returns the service's routes.
func (s *Service) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "\"pong\"\n")
	})

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.puntf(w, http.StatusMethodNotAllowed, "use POST")
			return
		}
		js, err := io.ReadAll(r.Body)
		if err != nil {
			s.puntf(w, http.StatusBadRequest, "ReadAll error %v", err)
			return
		}
		var msg Message
		if err = json.Unmarshal(js, &msg); err != nil {
			s.puntf(w, http.StatusBadRequest, "Unmarshal error %v on %s", err, js)
			return
		}
		result := s.Chat.Process(r.Context(), &msg)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			s.Logger.Warn("response write failed", zap.Error(err))
		}
	})

	if s.WebSockets {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.chat(ctx, w, r)
		})
		mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
			s.events(ctx, w, r)
		})
	}

	return mux
}

// chat serves one websocket conversation.
func (s *Service) chat(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("upgrade error", zap.Error(err))
		return
	}
	defer c.Close()

	session := NewSessionID()
	s.Logger.Debug("websocket chat", zap.String("session", session))

	for {
		mt, bs, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Logger.Debug("read error", zap.Error(err))
			}
			return
		}
		if len(bs) == 0 {
			continue
		}

		msg := &Message{}
		if err := json.Unmarshal(bs, msg); err != nil || msg.Message == "" {
			msg = &Message{Message: string(bs)}
		}
		if msg.SessionID == "" {
			msg.SessionID = session
		}

		result := s.Chat.Process(ctx, msg)
		js, err := json.Marshal(result)
		if err != nil {
			s.Logger.Error("marshal error", zap.Error(err))
			continue
		}
		if err = c.WriteMessage(mt, js); err != nil {
			s.Logger.Debug("write error", zap.Error(err))
			return
		}
	}
}

// events serves the event firehose.
func (s *Service) events(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	// The firehose hears every event after the handshake.
	firehose := make(chan interface{}, 32)
	id := NewSessionID()
	s.conns.Store(id, firehose)
	defer s.conns.Delete(id)

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("upgrade error", zap.Error(err))
		return
	}
	defer c.Close()

	// Reads only detect the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case x := <-firehose:
			js, err := json.Marshal(x)
			if err != nil {
				s.Logger.Warn("firehose marshal error", zap.Error(err))
				continue
			}
			if err = c.WriteMessage(websocket.TextMessage, js); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a bot event to every firehose connection.  It's a
// core.Listener.
func (s *Service) Broadcast(event string, args ...interface{}) {
	msg := EventMessage(event, args...)
	s.conns.Range(func(k, v interface{}) bool {
		select {
		case v.(chan interface{}) <- msg:
		default:
			s.Logger.Warn("firehose blocked", zap.Any("conn", k))
		}
		return true
	})
}

// Run serves until the context is done.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.Logger.Info("listening", zap.String("addr", s.Addr), zap.Bool("websockets", s.WebSockets))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
