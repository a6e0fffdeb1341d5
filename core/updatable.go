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
	"context"
	"sync/atomic"
)

// Botter enables other things to manifest themselves as Bots.
//
// A Bot is itself a Botter.  An UpdatableBot is also a Botter, but
// it's not itself a Bot.
type Botter interface {
	Bot() *Bot
}

// UpdatableBot is a Botter with an underlying Bot that can be
// changed at any time.
//
// Since a live Context must not be re-parsed, reloading a script
// means making a new Bot and swapping it in.
type UpdatableBot struct {
	bot atomic.Pointer[Bot]
}

// NewUpdatableBot makes one with the given initial Bot, which can be
// changed later via SetBot.
func NewUpdatableBot(b *Bot) *UpdatableBot {
	u := &UpdatableBot{}
	u.bot.Store(b)
	return u
}

// SetBot atomically changes the underlying Bot.
func (u *UpdatableBot) SetBot(b *Bot) {
	u.bot.Store(b)
}

// Bot implements the Botter interface.
func (u *UpdatableBot) Bot() *Bot {
	return u.bot.Load()
}

// Handle hands the Request to the current Bot.
func (u *UpdatableBot) Handle(ctx context.Context, req *Request) *Request {
	return u.Bot().Handle(ctx, req)
}
