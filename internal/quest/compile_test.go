package quest

import (
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func testInput() *Input {
	return &Input{
		QuestId:      "city-hunt",
		QuestVersion: "3",
		WindowSize:   2,
		Checkpoints: []Checkpoint{
			{
				Id:    "fountain",
				Title: "The Old Fountain",
				Order: 1,
				Timeline: []Step{
					{Kind: StepKindText, Content: "Welcome, {{ .PlayerName }}!"},
					{Kind: StepKindPuzzle, PuzzleId: "riddle-1"},
				},
			},
			{
				Id:    "tower",
				Title: "Clock Tower",
				Order: 2,
				Timeline: []Step{
					{Kind: StepKindVideo, MediaURL: "https://cdn.example/clip.mp4", Blocking: boolPtr(true)},
				},
			},
			{
				Id:    "harbor",
				Title: "Harbor Steps",
				Order: 3,
			},
		},
	}
}

func boolPtr(b bool) *bool { return &b }

func TestCompile(t *testing.T) {
	def, err := Compile(testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "start object", def.StartObjectId, "fountain")
	testutil.AssertEqual(t, "end object", def.EndObjectId, "harbor")
	testutil.AssertEqual(t, "object count", len(def.Objects), 3)
	// 3 checkpoints x start/end + 3 steps
	testutil.AssertEqual(t, "node count", len(def.Nodes), 9)

	// Checkpoints without explicit successors chain by itinerary order.
	testutil.AssertEqual(t, "fountain out", def.Objects["fountain"].OutObjectIds[0], "tower")
	testutil.AssertEqual(t, "tower out", def.Objects["tower"].OutObjectIds[0], "harbor")
	testutil.AssertEqual(t, "harbor out count", len(def.Objects["harbor"].OutObjectIds), 0)

	// The timeline chains start -> text -> puzzle -> end.
	start := def.Nodes["fountain-start"]
	if start == nil {
		t.Fatal("expected synthesized start node")
	}
	testutil.AssertEqual(t, "entry node", def.Objects["fountain"].EntryNodeId, "fountain-start")
	testutil.AssertEqual(t, "start role", start.Role, StateRoleStart)
	testutil.AssertEqual(t, "start next", start.Next[0], "fountain-step-0-text")

	text := def.Nodes["fountain-step-0-text"]
	testutil.AssertEqual(t, "text next", text.Next[0], "fountain-step-1-puzzle")

	puzzle := def.Nodes["fountain-step-1-puzzle"]
	testutil.AssertEqual(t, "puzzle kind", puzzle.Kind, NodeKindPuzzle)
	testutil.AssertEqual(t, "puzzle success edge", puzzle.OnSuccess[0], "fountain-end")
	testutil.AssertEqual(t, "puzzle failure edges", len(puzzle.OnFailure), 0)
	testutil.AssertEqual(t, "puzzle linear edges", len(puzzle.Next), 0)

	end := def.Nodes["fountain-end"]
	testutil.AssertEqual(t, "end role", end.Role, StateRoleEnd)
	testutil.AssertEqual(t, "end outgoing", len(end.Next), 0)

	// An empty timeline still yields start -> end.
	testutil.AssertEqual(t, "harbor chain", def.Nodes["harbor-start"].Next[0], "harbor-end")
}

func TestCompile_StartFlag(t *testing.T) {
	in := testInput()
	in.Checkpoints[1].IsStart = true

	def, err := Compile(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "start object", def.StartObjectId, "tower")
}

func TestCompile_DisabledStepsSkipped(t *testing.T) {
	in := testInput()
	in.Checkpoints[0].Timeline[0].Disabled = true

	def, err := Compile(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Nodes["fountain-step-0-text"] != nil {
		t.Error("disabled step should not be compiled")
	}
	// Step indexes are preserved for the remaining steps.
	testutil.AssertEqual(t, "chain skips disabled", def.Nodes["fountain-start"].Next[0], "fountain-step-1-puzzle")
}

func TestCompile_Rejections(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Input)
		expErr string
	}{
		"puzzle without reference": {
			mutate: func(in *Input) {
				in.Checkpoints[0].Timeline[1].PuzzleId = ""
			},
			expErr: "puzzle_id is required",
		},
		"unknown step kind": {
			mutate: func(in *Input) {
				in.Checkpoints[0].Timeline[0].Kind = "hologram"
			},
			expErr: "unknown step kind",
		},
		"text without content": {
			mutate: func(in *Input) {
				in.Checkpoints[0].Timeline[0].Content = ""
			},
			expErr: "content is required",
		},
		"bad narrative template": {
			mutate: func(in *Input) {
				in.Checkpoints[0].Timeline[0].Content = "{{ .PlayerName"
			},
			expErr: "content template",
		},
		"window size zero": {
			mutate: func(in *Input) {
				in.WindowSize = 0
			},
			expErr: "window_size must be at least 1",
		},
		"checkpoint id with spaces": {
			mutate: func(in *Input) {
				in.Checkpoints[0].Id = "old fountain"
			},
			expErr: "must contain only letters, digits, hyphens, and underscores",
		},
		"duplicate checkpoint id": {
			mutate: func(in *Input) {
				in.Checkpoints[1].Id = "fountain"
			},
			expErr: "duplicate id",
		},
		"dangling explicit successor": {
			mutate: func(in *Input) {
				in.Checkpoints[0].Next = []string{"atlantis"}
			},
			expErr: "unknown object",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			in := testInput()
			tt.mutate(in)

			_, err := Compile(in)
			testutil.AssertErrorContains(t, err, tt.expErr)
		})
	}
}

func TestNodeId_LengthBudget(t *testing.T) {
	short := NodeId("fountain", "start")
	testutil.AssertEqual(t, "short id", short, "fountain-start")

	long := strings.Repeat("very-long-checkpoint-name-", 5)
	id1 := NodeId(long, "step-0-text")
	id2 := NodeId(long, "step-1-text")

	if len(id1) > idMaxLen {
		t.Errorf("id length %d exceeds budget %d", len(id1), idMaxLen)
	}
	if id1 == id2 {
		t.Error("truncated ids must not collide")
	}
}
