// Package interpreters collects the standard plugin sandboxes.
package interpreters

import (
	"github.com/yeuai/botscript/core"
	"github.com/yeuai/botscript/interpreters/ecmascript"
	"github.com/yeuai/botscript/interpreters/noop"
)

// Standard returns the sandboxes keyed by code fence language.
func Standard() core.InterpretersMap {
	is := core.InterpretersMap{}

	es := ecmascript.NewInterpreter()
	is["js"] = es
	is["javascript"] = es
	is["ecmascript"] = es

	is["noop"] = noop.NewInterpreter()

	return is
}
