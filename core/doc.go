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

// Package core provides the dialogue resolution engine.
//
// A bot is written in botscript: blank-line separated blocks, each
// introduced by a marker character.
//
//    ! name BotScript
//
//    + hello bot
//    - Hello human!
//
//    + my name is *{name}
//    ~ age
//    - Hello $name, you are $age!
//
//    ~ age
//    - How old are you?
//    + I am #{age}
//    + #{age}
//
// Parse turns the text into Structs, which a Context collects by
// kind.  The Context compiles every trigger (see package match) and
// ranks them so that literal triggers are considered before wildcard
// ones.
//
// Each human message is a Request.  Bot.Handle runs a small state
// machine (digest, then dialogue, flow or nomatch, then output) that
// finds the dialogue the message activates and tracks the flows that
// dialogue still needs.  Then the conditional actions of the
// dialogue run, and finally the reply is picked and interpolated.
// The Request carries the conversation state, so a continuing turn
// is made with Request.Enter.
//
// Expression evaluation, plugin code, commands, formats and includes
// are delegated to collaborators (Evaluator, Interpreter, Invoker,
// Formatter, Loader).  See the interpreters, commands, templates and
// includes packages for implementations.
package core
