package tools

import (
	"reflect"
	"testing"

	. "github.com/yeuai/botscript/util/testutil"
)

func TestAnalysis(t *testing.T) {
	c := testContext(t, append(orderScript,
		"",
		"+ quiet",
		"* $x == 1",
		"",
		"+ who",
		"- I am [name] and I like [sizes]",
		"",
		"> addTimeNow",
		"> mystery",
	)...)

	a, err := Analyze(c)
	if err != nil {
		t.Fatal(err)
	}

	if a.Dialogues != 4 || a.Flows != 2 || a.Commands != 1 || a.Definitions != 1 || a.Plugins != 2 {
		t.Fatalf("counts: %s", JS(a))
	}
	if len(a.Errors) != 0 {
		t.Fatalf("errors: %v", a.Errors)
	}

	check := func(what string, got, want []string) {
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: %v, wanted %v", what, got, want)
		}
	}
	check("missing flows", a.MissingFlows, []string{"address"})
	check("missing dialogues", a.MissingDialogues, []string{"nowhere"})
	check("missing commands", a.MissingCommands, nil)
	check("missing questions", a.MissingQuestions, nil)
	check("orphans", a.OrphanFlows, []string{"unused"})
	check("silent", a.Silent, []string{"quiet"})
	check("undefined", a.UndefinedDefinitions, []string{"name"})
	check("unbound", a.UnboundPlugins, []string{"mystery"})

	if a.OK() {
		t.Fatal("should not be OK")
	}
}

func TestAnalysisOK(t *testing.T) {
	c := testContext(t,
		"+ hello",
		"- hi",
	)
	a, err := Analyze(c)
	if err != nil {
		t.Fatal(err)
	}
	if !a.OK() || a.Triggers != 1 {
		t.Fatalf("analysis: %s", JS(a))
	}
}
