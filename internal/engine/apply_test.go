package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-quest/internal/quest"
	"github.com/pixil98/go-testutil"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// linearDef compiles a 3-checkpoint linear quest where each checkpoint
// carries a single puzzle, with a visibility window of 2.
func linearDef(t *testing.T) *quest.Definition {
	t.Helper()
	def, err := quest.Compile(&quest.Input{
		QuestId:      "city-hunt",
		QuestVersion: "1",
		WindowSize:   2,
		Checkpoints: []quest.Checkpoint{
			{Id: "obj-1", Title: "One", Order: 1, Timeline: []quest.Step{{Kind: quest.StepKindPuzzle, PuzzleId: "p1"}}},
			{Id: "obj-2", Title: "Two", Order: 2, Timeline: []quest.Step{{Kind: quest.StepKindPuzzle, PuzzleId: "p2"}}},
			{Id: "obj-3", Title: "Three", Order: 3, Timeline: []quest.Step{{Kind: quest.StepKindPuzzle, PuzzleId: "p3"}}},
		},
	})
	if err != nil {
		t.Fatalf("compiling fixture: %v", err)
	}
	return def
}

func joinEvent(id, playerId, name string) *Event {
	return &Event{
		Id:           id,
		Kind:         EventSessionStartOrJoin,
		SessionId:    "sess-1",
		PlayerId:     playerId,
		PlayerName:   name,
		QuestId:      "city-hunt",
		QuestVersion: "1",
	}
}

func arriveEvent(id, playerId, objectId string) *Event {
	return &Event{
		Id:        id,
		Kind:      EventObjectArrive,
		SessionId: "sess-1",
		PlayerId:  playerId,
		ObjectId:  objectId,
	}
}

func puzzleEvent(id, playerId, nodeId string, outcome Outcome, points int) *Event {
	return &Event{
		Id:        id,
		Kind:      EventPuzzleSubmit,
		SessionId: "sess-1",
		PlayerId:  playerId,
		NodeId:    nodeId,
		Outcome:   outcome,
		Points:    points,
	}
}

// mustApply applies an event and fails the test on error.
func mustApply(t *testing.T, def *quest.Definition, state *State, evt *Event) (*State, []Delta) {
	t.Helper()
	next, deltas, err := Apply(def, state, evt, testNow)
	if err != nil {
		t.Fatalf("applying %s: %v", evt.Kind, err)
	}
	return next, deltas
}

func hasDelta(deltas []Delta, kind DeltaKind) bool {
	for _, d := range deltas {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestApply_SessionStartOrJoin(t *testing.T) {
	def := linearDef(t)

	state, deltas := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))

	testutil.AssertEqual(t, "session id", state.Id, "sess-1")
	testutil.AssertEqual(t, "status", state.Status, SessionActive)
	testutil.AssertEqual(t, "version", state.Version, uint64(1))
	testutil.AssertEqual(t, "player count", len(state.Players), 1)
	testutil.AssertEqual(t, "current object", state.Players["ada"].CurrentObjectId, "obj-1")
	if !hasDelta(deltas, DeltaSessionCreated) || !hasDelta(deltas, DeltaPlayerJoined) {
		t.Errorf("expected session_created and player_joined deltas, got %v", deltas)
	}

	// A second join registers only the new player.
	state2, deltas2 := mustApply(t, def, state, joinEvent("e2", "bob", "Bob"))
	testutil.AssertEqual(t, "player count", len(state2.Players), 2)
	if hasDelta(deltas2, DeltaSessionCreated) {
		t.Error("rejoin must not recreate the session")
	}

	// Rejoining an existing player changes nothing but the version.
	state3, deltas3 := mustApply(t, def, state2, joinEvent("e3", "ada", "Ada"))
	testutil.AssertEqual(t, "player count", len(state3.Players), 2)
	testutil.AssertEqual(t, "deltas", len(deltas3), 0)
}

func TestApply_MissingSession(t *testing.T) {
	def := linearDef(t)

	_, _, err := Apply(def, nil, arriveEvent("e1", "ada", "obj-1"), testNow)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestApply_IdempotentReplay(t *testing.T) {
	def := linearDef(t)
	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))
	state, _ = mustApply(t, def, state, arriveEvent("e2", "ada", "obj-1"))

	tests := map[string]*Event{
		"same event id": arriveEvent("e2", "ada", "obj-1"),
		"new id, seen dedupe key": func() *Event {
			evt := arriveEvent("e9", "ada", "obj-1")
			evt.DedupeKey = "arrive-obj-1"
			return evt
		}(),
	}

	// Record the dedupe key first.
	seeded := arriveEvent("e3", "ada", "obj-1")
	seeded.DedupeKey = "arrive-obj-1"
	state, _ = mustApply(t, def, state, seeded)

	for name, evt := range tests {
		t.Run(name, func(t *testing.T) {
			next, deltas, err := Apply(def, state, evt, testNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next != state {
				t.Error("replay must return the prior state unchanged")
			}
			testutil.AssertEqual(t, "deltas", len(deltas), 0)
		})
	}
}

func TestApply_ObjectArrive(t *testing.T) {
	def := linearDef(t)
	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))

	state, deltas := mustApply(t, def, state, arriveEvent("e2", "ada", "obj-1"))

	if !state.ObjectArrived("ada", "obj-1") {
		t.Fatal("expected arrival recorded")
	}
	arrivedAt := *state.Objects["ada"]["obj-1"].ArrivedAt
	if !hasDelta(deltas, DeltaObjectArrived) {
		t.Errorf("expected object_arrived delta, got %v", deltas)
	}

	// The entry chain unlocks through the start node up to the puzzle.
	testutil.AssertEqual(t, "start node", state.PeekNodeState("ada", "obj-1-start").Status, NodeCompleted)
	testutil.AssertEqual(t, "puzzle node", state.PeekNodeState("ada", "obj-1-step-0-puzzle").Status, NodeUnlocked)

	// A later arrival event does not move the first-arrival timestamp.
	state, deltas = mustApply(t, def, state, arriveEvent("e3", "ada", "obj-1"))
	testutil.AssertEqual(t, "arrived at", *state.Objects["ada"]["obj-1"].ArrivedAt, arrivedAt)
	if hasDelta(deltas, DeltaObjectArrived) {
		t.Error("second arrival must not re-emit object_arrived")
	}
}

func TestApply_ErrorsBeforeMutation(t *testing.T) {
	def := linearDef(t)
	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))

	tests := map[string]struct {
		evt    *Event
		expErr error
	}{
		"unknown object": {
			evt:    arriveEvent("e2", "ada", "atlantis"),
			expErr: ErrUnknownObject,
		},
		"unknown node": {
			evt:    puzzleEvent("e2", "ada", "no-such-node", OutcomeSuccess, 0),
			expErr: ErrUnknownNode,
		},
		"complete on branching node": {
			evt: &Event{
				Id: "e2", Kind: EventNodeComplete, SessionId: "sess-1",
				PlayerId: "ada", NodeId: "obj-1-step-0-puzzle",
			},
			expErr: ErrNodeKindMismatch,
		},
		"puzzle submit on linear node": {
			evt:    puzzleEvent("e2", "ada", "obj-1-start", OutcomeSuccess, 0),
			expErr: ErrNodeKindMismatch,
		},
		"action submit on puzzle node": {
			evt: &Event{
				Id: "e2", Kind: EventActionSubmit, SessionId: "sess-1",
				PlayerId: "ada", NodeId: "obj-1-step-0-puzzle", Outcome: OutcomeSuccess,
			},
			expErr: ErrNodeKindMismatch,
		},
		"quest mismatch on join": {
			evt: func() *Event {
				evt := joinEvent("e2", "bob", "Bob")
				evt.QuestVersion = "99"
				return evt
			}(),
			expErr: ErrQuestMismatch,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			next, deltas, err := Apply(def, state, tt.evt, testNow)
			if !errors.Is(err, tt.expErr) {
				t.Fatalf("expected %v, got %v", tt.expErr, err)
			}
			if next != state {
				t.Error("failed application must return the prior state untouched")
			}
			testutil.AssertEqual(t, "deltas", len(deltas), 0)
			testutil.AssertEqual(t, "version", state.Version, uint64(1))
			if state.Events.Has(tt.evt.Id) {
				t.Error("failed event must not enter the ledger")
			}
		})
	}
}

func TestApply_PuzzleOutcomes(t *testing.T) {
	def := linearDef(t)
	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))
	state, _ = mustApply(t, def, state, arriveEvent("e2", "ada", "obj-1"))

	// A failed attempt completes the node with a failed outcome and does
	// not advance or score.
	state, deltas := mustApply(t, def, state, puzzleEvent("e3", "ada", "obj-1-step-0-puzzle", OutcomeFail, 10))
	ns := state.PeekNodeState("ada", "obj-1-step-0-puzzle")
	testutil.AssertEqual(t, "status", ns.Status, NodeCompleted)
	testutil.AssertEqual(t, "outcome", ns.Outcome, OutcomeFail)
	testutil.AssertEqual(t, "score", state.Players["ada"].Score, 0)
	if state.ObjectCompleted("ada", "obj-1") {
		t.Fatal("failed puzzle must not complete the object")
	}
	if hasDelta(deltas, DeltaScoreChanged) {
		t.Error("failed puzzle must not emit score_changed")
	}

	// The failure synonym is preserved as sent.
	state, _ = mustApply(t, def, state, puzzleEvent("e4", "ada", "obj-1-step-0-puzzle", OutcomeFailure, 10))
	testutil.AssertEqual(t, "synonym outcome", state.PeekNodeState("ada", "obj-1-step-0-puzzle").Outcome, OutcomeFailure)

	// Success overwrites the failed outcome, scores once, and advances
	// through the end node to complete the object.
	state, deltas = mustApply(t, def, state, puzzleEvent("e5", "ada", "obj-1-step-0-puzzle", OutcomeSuccess, 10))
	ns = state.PeekNodeState("ada", "obj-1-step-0-puzzle")
	testutil.AssertEqual(t, "status", ns.Status, NodeCompleted)
	testutil.AssertEqual(t, "outcome", ns.Outcome, OutcomeSuccess)
	testutil.AssertEqual(t, "score", state.Players["ada"].Score, 10)
	if !state.ObjectCompleted("ada", "obj-1") {
		t.Fatal("expected object completion")
	}
	if !hasDelta(deltas, DeltaObjectCompleted) || !hasDelta(deltas, DeltaScoreChanged) {
		t.Errorf("expected object_completed and score_changed deltas, got %v", deltas)
	}
	testutil.AssertEqual(t, "current object", state.Players["ada"].CurrentObjectId, "obj-2")

	// A recorded success is final: a later failed submission cannot
	// regress status or outcome, and changes nothing worth notifying.
	state, deltas = mustApply(t, def, state, puzzleEvent("e6", "ada", "obj-1-step-0-puzzle", OutcomeFail, 10))
	ns = state.PeekNodeState("ada", "obj-1-step-0-puzzle")
	testutil.AssertEqual(t, "final status", ns.Status, NodeCompleted)
	testutil.AssertEqual(t, "final outcome", ns.Outcome, OutcomeSuccess)
	if hasDelta(deltas, DeltaNodeCompleted) {
		t.Error("a no-op resubmission must not re-emit node_completed")
	}
}

func TestApply_ScoreIdempotence(t *testing.T) {
	def := linearDef(t)
	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))
	state, _ = mustApply(t, def, state, arriveEvent("e2", "ada", "obj-1"))

	first := puzzleEvent("e3", "ada", "obj-1-step-0-puzzle", OutcomeSuccess, 10)
	first.DedupeKey = "p1-attempt-1"
	state, _ = mustApply(t, def, state, first)
	testutil.AssertEqual(t, "score", state.Players["ada"].Score, 10)

	// Retried with a fresh event id but the same dedupe key: no-op.
	retry := puzzleEvent("e4", "ada", "obj-1-step-0-puzzle", OutcomeSuccess, 10)
	retry.DedupeKey = "p1-attempt-1"
	next, deltas := mustApply(t, def, state, retry)
	if next != state {
		t.Error("dedupe replay must return prior state")
	}
	testutil.AssertEqual(t, "deltas", len(deltas), 0)

	// Even a genuinely new duplicate success never double-counts.
	dup := puzzleEvent("e5", "ada", "obj-1-step-0-puzzle", OutcomeSuccess, 10)
	dup.DedupeKey = "p1-attempt-2"
	state, _ = mustApply(t, def, state, dup)
	testutil.AssertEqual(t, "score", state.Players["ada"].Score, 10)
}

func TestApply_NodeComplete(t *testing.T) {
	def, err := quest.Compile(&quest.Input{
		QuestId:      "media-walk",
		QuestVersion: "1",
		WindowSize:   1,
		Checkpoints: []quest.Checkpoint{
			{Id: "plaza", Title: "Plaza", Order: 1, Timeline: []quest.Step{
				{Kind: quest.StepKindVideo, MediaURL: "https://cdn.example/a.mp4", Blocking: boolPtr(true)},
				{Kind: quest.StepKindText, Content: "Done!"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("compiling fixture: %v", err)
	}

	join := joinEvent("e1", "ada", "Ada")
	join.QuestId = "media-walk"
	state, _ := mustApply(t, def, nil, join)
	state, _ = mustApply(t, def, state, arriveEvent("e2", "ada", "plaza"))

	// The blocking video halts auto-advance.
	testutil.AssertEqual(t, "video status", state.PeekNodeState("ada", "plaza-step-0-video").Status, NodeUnlocked)
	if state.PeekNodeState("ada", "plaza-step-1-text") != nil {
		t.Fatal("nodes past a blocking node must stay untouched")
	}

	// Completing the video cascades through the non-blocking text node
	// and the end node, completing the object.
	complete := &Event{
		Id: "e3", Kind: EventNodeComplete, SessionId: "sess-1",
		PlayerId: "ada", NodeId: "plaza-step-0-video",
	}
	state, deltas := mustApply(t, def, state, complete)
	testutil.AssertEqual(t, "video status", state.PeekNodeState("ada", "plaza-step-0-video").Status, NodeCompleted)
	testutil.AssertEqual(t, "text status", state.PeekNodeState("ada", "plaza-step-1-text").Status, NodeCompleted)
	if !state.ObjectCompleted("ada", "plaza") {
		t.Fatal("expected object completion")
	}
	if !hasDelta(deltas, DeltaSessionCompleted) {
		t.Errorf("single-player quest end must complete the session, got %v", deltas)
	}
	testutil.AssertEqual(t, "session status", state.Status, SessionEnded)
	testutil.AssertEqual(t, "current object", state.Players["ada"].CurrentObjectId, "")
}

func TestApply_MonotonicNodeStatus(t *testing.T) {
	def := linearDef(t)
	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))
	state, _ = mustApply(t, def, state, arriveEvent("e2", "ada", "obj-1"))
	state, _ = mustApply(t, def, state, puzzleEvent("e3", "ada", "obj-1-step-0-puzzle", OutcomeSuccess, 10))

	// Re-arriving must not regress any node status.
	state, _ = mustApply(t, def, state, arriveEvent("e4", "ada", "obj-1"))
	testutil.AssertEqual(t, "start", state.PeekNodeState("ada", "obj-1-start").Status, NodeCompleted)
	testutil.AssertEqual(t, "puzzle", state.PeekNodeState("ada", "obj-1-step-0-puzzle").Status, NodeCompleted)
	testutil.AssertEqual(t, "end", state.PeekNodeState("ada", "obj-1-end").Status, NodeCompleted)
}

func TestApply_EndToEndScenario(t *testing.T) {
	def := linearDef(t)

	state, _ := mustApply(t, def, nil, joinEvent("e1", "ada", "Ada"))

	snap, err := BuildSnapshot(def, state, "ada", testNow)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	testutil.AssertEqual(t, "initial visible", len(snap.VisibleObjectIds), 1)
	testutil.AssertEqual(t, "initial visible object", snap.VisibleObjectIds[0], "obj-1")

	// Clear obj-1 for 10 points.
	state, _ = mustApply(t, def, state, arriveEvent("e2", "ada", "obj-1"))
	state, _ = mustApply(t, def, state, puzzleEvent("e3", "ada", "obj-1-step-0-puzzle", OutcomeSuccess, 10))

	snap, err = BuildSnapshot(def, state, "ada", testNow)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	testutil.AssertEqual(t, "score", snap.Players[0].Score, 10)
	testutil.AssertEqual(t, "visible", len(snap.VisibleObjectIds), 2)
	testutil.AssertEqual(t, "visible[0]", snap.VisibleObjectIds[0], "obj-1")
	testutil.AssertEqual(t, "visible[1]", snap.VisibleObjectIds[1], "obj-2")

	// Clear obj-2 for 20 points; obj-1 slides out of the window.
	state, _ = mustApply(t, def, state, arriveEvent("e4", "ada", "obj-2"))
	state, _ = mustApply(t, def, state, puzzleEvent("e5", "ada", "obj-2-step-0-puzzle", OutcomeSuccess, 20))

	snap, err = BuildSnapshot(def, state, "ada", testNow)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	testutil.AssertEqual(t, "score", snap.Players[0].Score, 30)
	testutil.AssertEqual(t, "visible[0]", snap.VisibleObjectIds[0], "obj-2")
	testutil.AssertEqual(t, "visible[1]", snap.VisibleObjectIds[1], "obj-3")
	for _, oid := range snap.VisibleObjectIds {
		if oid == "obj-1" {
			t.Error("obj-1 must slide out of the window")
		}
	}

	// Clear obj-3 for 30 points; the quest is finished.
	state, _ = mustApply(t, def, state, arriveEvent("e6", "ada", "obj-3"))
	state, deltas := mustApply(t, def, state, puzzleEvent("e7", "ada", "obj-3-step-0-puzzle", OutcomeSuccess, 30))

	testutil.AssertEqual(t, "score", state.Players["ada"].Score, 60)
	testutil.AssertEqual(t, "current object", state.Players["ada"].CurrentObjectId, "")
	testutil.AssertEqual(t, "session status", state.Status, SessionEnded)
	if !hasDelta(deltas, DeltaSessionCompleted) {
		t.Errorf("expected session_completed delta, got %v", deltas)
	}
}

func boolPtr(b bool) *bool { return &b }
