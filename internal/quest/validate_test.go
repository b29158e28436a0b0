package quest

import (
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func validDefinition(t *testing.T) *Definition {
	t.Helper()
	def, err := Compile(testInput())
	if err != nil {
		t.Fatalf("compiling fixture: %v", err)
	}
	return def
}

func TestValidate_CleanDefinition(t *testing.T) {
	def := validDefinition(t)

	violations := Validate(def)
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Definition)
		expPath string
		expMsg  string
	}{
		"dangling out object": {
			mutate: func(d *Definition) {
				d.Objects["fountain"].OutObjectIds = []string{"atlantis"}
			},
			expPath: "objects.fountain.out_object_ids[0]",
			expMsg:  "unknown object",
		},
		"dangling edge": {
			mutate: func(d *Definition) {
				d.Nodes["fountain-start"].Next = []string{"nowhere"}
			},
			expPath: "nodes.fountain-start.next[0]",
			expMsg:  "unknown node",
		},
		"entry node not own start": {
			mutate: func(d *Definition) {
				d.Objects["fountain"].EntryNodeId = "tower-start"
			},
			expPath: "objects.fountain.entry_node_id",
			expMsg:  "not the object's own start",
		},
		"missing start node": {
			mutate: func(d *Definition) {
				d.Nodes["fountain-start"].Role = ""
			},
			expPath: "objects.fountain",
			expMsg:  "exactly one start state node",
		},
		"branching without success edge": {
			mutate: func(d *Definition) {
				d.Nodes["fountain-step-1-puzzle"].OnSuccess = nil
			},
			expPath: "nodes.fountain-step-1-puzzle.on_success",
			expMsg:  "at least one success successor",
		},
		"end node with outgoing edge": {
			mutate: func(d *Definition) {
				d.Nodes["fountain-end"].Next = []string{"tower-start"}
			},
			expPath: "nodes.fountain-end",
			expMsg:  "no outgoing edges",
		},
		"linear node with branch edges": {
			mutate: func(d *Definition) {
				d.Nodes["fountain-step-0-text"].OnSuccess = []string{"fountain-end"}
			},
			expPath: "nodes.fountain-step-0-text",
			expMsg:  "must not have success/failure successors",
		},
		"node id with illegal characters": {
			mutate: func(d *Definition) {
				d.Nodes["fountain-start"].Id = "fountain start!"
			},
			expPath: "nodes.fountain start!.id",
			expMsg:  "must contain only letters, digits, hyphens, and underscores",
		},
		"window size zero": {
			mutate: func(d *Definition) {
				d.Policies.VisibilityWindowSize = 0
			},
			expPath: "policies.visibility_window_size",
			expMsg:  "at least 1",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			def := validDefinition(t)
			tt.mutate(def)

			violations := Validate(def)
			for _, v := range violations {
				if v.Path == tt.expPath && strings.Contains(v.Message, tt.expMsg) {
					return
				}
			}
			t.Errorf("expected violation at %q containing %q, got %v", tt.expPath, tt.expMsg, violations)
		})
	}
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	def := validDefinition(t)

	// Three independent defects must all be reported in one pass.
	def.Objects["fountain"].OutObjectIds = []string{"atlantis"}
	def.Nodes["fountain-step-1-puzzle"].OnSuccess = nil
	def.Nodes["harbor-end"].Next = []string{"harbor-start"}

	violations := Validate(def)
	if len(violations) < 3 {
		t.Fatalf("expected at least 3 violations, got %d: %v", len(violations), violations)
	}

	err := &ValidationError{Violations: violations}
	testutil.AssertErrorContains(t, err, "violation(s)")
}
