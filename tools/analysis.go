package tools

import (
	"sort"
	"strings"

	"github.com/yeuai/botscript/core"

	"github.com/dlclark/regexp2"
)

// ScriptAnalysis reports the shape of a script and the things in it
// that are probably mistakes.
type ScriptAnalysis struct {
	Definitions int `json:"definitions" yaml:"definitions"`
	Dialogues   int `json:"dialogues" yaml:"dialogues"`
	Flows       int `json:"flows" yaml:"flows"`
	Commands    int `json:"commands" yaml:"commands"`
	Questions   int `json:"questions" yaml:"questions"`
	Plugins     int `json:"plugins" yaml:"plugins"`
	Directives  int `json:"directives" yaml:"directives"`
	Triggers    int `json:"triggers" yaml:"triggers"`
	Conditions  int `json:"conditions" yaml:"conditions"`

	// Errors are triggers that don't compile.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	MissingFlows     []string `json:"missingFlows,omitempty" yaml:"missingFlows,omitempty"`
	MissingDialogues []string `json:"missingDialogues,omitempty" yaml:"missingDialogues,omitempty"`
	MissingCommands  []string `json:"missingCommands,omitempty" yaml:"missingCommands,omitempty"`
	MissingQuestions []string `json:"missingQuestions,omitempty" yaml:"missingQuestions,omitempty"`

	// UndefinedDefinitions are "[name]" references in replies
	// with no definition.
	UndefinedDefinitions []string `json:"undefinedDefinitions,omitempty" yaml:"undefinedDefinitions,omitempty"`

	// OrphanFlows are flows that nothing uses.
	OrphanFlows []string `json:"orphanFlows,omitempty" yaml:"orphanFlows,omitempty"`

	// Silent dialogues have no replies and no action conditions.
	Silent []string `json:"silent,omitempty" yaml:"silent,omitempty"`

	// UnboundPlugins have no registered function, "plugin:"
	// directive, or built-in.
	UnboundPlugins []string `json:"unboundPlugins,omitempty" yaml:"unboundPlugins,omitempty"`
}

// OK reports whether the analysis found no errors or missing
// targets.
//
// Orphans, silent dialogues, and undefined definitions are only
// warnings.
func (a *ScriptAnalysis) OK() bool {
	return len(a.Errors) == 0 &&
		len(a.MissingFlows) == 0 &&
		len(a.MissingDialogues) == 0 &&
		len(a.MissingCommands) == 0 &&
		len(a.MissingQuestions) == 0 &&
		len(a.UnboundPlugins) == 0
}

var definitionRef = regexp2.MustCompile(`\[([\w\- ]+)\]`, regexp2.None)

// Analyze examines the script in the Context.
func Analyze(c *core.Context) (*ScriptAnalysis, error) {
	a := ScriptAnalysis{
		Definitions: c.Definitions.Len(),
		Dialogues:   c.Dialogues.Len(),
		Flows:       c.Flows.Len(),
		Commands:    c.Commands.Len(),
		Questions:   c.Questions.Len(),
		Plugins:     c.Plugins.Len(),
		Directives:  c.Directives.Len(),
		Errors:      make([]string, 0, 8),
	}

	var (
		missing   = make(map[EdgeKind]map[string]bool)
		used      = make(map[string]bool)
		undefined = make(map[string]bool)
	)

	for _, s := range append(c.Dialogues.All(), c.Flows.All()...) {
		for _, line := range s.Triggers {
			a.Triggers++
			if _, err := c.Compile(line); err != nil {
				a.Errors = append(a.Errors, s.Name+": "+line+": "+err.Error())
			}
		}
		a.Conditions += len(s.Conditions)

		actions := 0
		for _, line := range s.Conditions {
			if _, isAction := core.ParseCondition(line); isAction {
				actions++
			}
		}
		if s.Kind == core.KindDialogue && len(s.Replies) == 0 && actions == 0 {
			a.Silent = append(a.Silent, s.Name)
		}

		for _, reply := range s.Replies {
			for _, name := range references(reply) {
				if !c.Definitions.Has(name) {
					undefined[name] = true
				}
			}
		}
	}

	g := NewGraph(c)
	for _, e := range g.Edges {
		n, _ := g.Node(e.To)
		if n == nil {
			continue
		}
		if e.Kind == EdgeFlow || e.Kind == EdgeConditionalFlow {
			used[n.Name] = true
		}
		if !n.Missing {
			continue
		}
		kind := e.Kind
		if kind == EdgeConditionalFlow {
			kind = EdgeFlow
		}
		if missing[kind] == nil {
			missing[kind] = make(map[string]bool)
		}
		missing[kind][n.Name] = true
	}

	for _, s := range c.Flows.All() {
		if !used[s.Name] {
			a.OrphanFlows = append(a.OrphanFlows, s.Name)
		}
	}

	for _, s := range c.Plugins.All() {
		if !bound(c, s) {
			a.UnboundPlugins = append(a.UnboundPlugins, s.Name)
		}
	}

	a.MissingFlows = keysToStringSlice(missing[EdgeFlow])
	a.MissingDialogues = keysToStringSlice(missing[EdgeForward])
	a.MissingCommands = keysToStringSlice(missing[EdgeCommand])
	a.MissingQuestions = keysToStringSlice(missing[EdgePrompt])
	a.UndefinedDefinitions = keysToStringSlice(undefined)

	return &a, nil
}

func bound(c *core.Context, s *core.Struct) bool {
	if s.Value != nil {
		return true
	}
	if _, have := c.Registered(s.Name); have {
		return true
	}
	if c.Directives.Has("plugin:" + strings.Join(strings.Fields(s.Name), "")) {
		return true
	}
	if s.Name == "nlu" {
		return true
	}
	_, have := core.Builtins[s.Name]
	return have
}

func references(text string) []string {
	var acc []string
	m, _ := definitionRef.FindStringMatch(text)
	for m != nil {
		acc = append(acc, m.GroupByNumber(1).String())
		m, _ = definitionRef.FindNextMatch(m)
	}
	return acc
}

// keysToStringSlice returns the map's keys, sorted.
func keysToStringSlice(m map[string]bool) []string {
	var list []string
	for key := range m {
		list = append(list, key)
	}
	sort.Strings(list)
	return list
}
