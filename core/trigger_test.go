package core

import (
	"testing"
)

func TestRankAtomicFirst(t *testing.T) {
	c := NewContext()
	ss, err := Parse("+ today *\n\n+ [greet] bot\n\n+ hi\n\n+ how are you\n\n+ # apples\n\n! greet\n- hi\n- hello")
	if err != nil {
		t.Fatal(err)
	}
	c.Add(ss...)

	ts := c.Triggers()
	if len(ts) != 5 {
		t.Fatalf("triggers: %d", len(ts))
	}
	seenOther := false
	for _, tr := range ts {
		if !tr.Atomic {
			seenOther = true
		} else if seenOther {
			t.Fatalf("atomic %s after a non-atomic trigger", tr.Original)
		}
	}
	if ts[0].Original != "how are you" || ts[1].Original != "hi" {
		t.Fatalf("order: %s, %s", ts[0].Original, ts[1].Original)
	}
}

func TestRankInvalidate(t *testing.T) {
	c := NewContext()
	ss, _ := Parse("+ hi")
	c.Add(ss...)
	if n := len(c.Triggers()); n != 1 {
		t.Fatalf("triggers: %d", n)
	}
	ss, _ = Parse("+ bye")
	c.Add(ss...)
	if n := len(c.Triggers()); n != 2 {
		t.Fatalf("triggers: %d", n)
	}
}

func TestRankSkipsBadPatterns(t *testing.T) {
	c := NewContext()
	ss, _ := Parse("+ /(oops/\n- never\n\n+ fine")
	c.Add(ss...)
	if ts := c.Triggers(); len(ts) != 1 || ts[0].Original != "fine" {
		t.Fatalf("triggers: %v", ts)
	}
}

func TestRankNegative(t *testing.T) {
	c := NewContext()
	ss, _ := Parse("+ !yes\n- you didn't say yes")
	c.Add(ss...)
	ts := c.Triggers()
	if len(ts) != 1 {
		t.Fatalf("triggers: %d", len(ts))
	}
	if ts[0].Matcher.Test("yes") || !ts[0].Matcher.Test("no") {
		t.Fatalf("negative trigger %s", ts[0].Matcher)
	}
}
