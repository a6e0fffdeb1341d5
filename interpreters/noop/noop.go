package noop

import (
	"context"

	"github.com/yeuai/botscript/core"

	"go.uber.org/zap"
)

// Interpreter is a core.Interpreter which compiles anything and
// executes nothing.
type Interpreter struct {
	// Silent, if true, will suppress warning log messages.
	Silent bool

	Logger *zap.Logger
}

func NewInterpreter() *Interpreter {
	return &Interpreter{
		Logger: zap.NewNop(),
	}
}

func (i *Interpreter) warn(msg string) {
	if i.Silent || i.Logger == nil {
		return
	}
	i.Logger.Warn(msg)
}

func (i *Interpreter) Compile(ctx context.Context, code string) (interface{}, error) {
	i.warn("using noop interpreter for compilation")
	return code, nil
}

func (i *Interpreter) Exec(ctx context.Context, compiled interface{}, env *core.Env) (core.PostProcessor, error) {
	i.warn("using noop interpreter for execution")
	return nil, nil
}

// Evaluator is a core.Evaluator that holds every expression to be
// the same value.
type Evaluator struct {
	Holds bool
}

func (e Evaluator) Test(ctx context.Context, expr string, scope map[string]interface{}) (bool, error) {
	return e.Holds, nil
}
