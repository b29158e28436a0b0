package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/pixil98/go-quest/internal/quest"
)

// Engine runtime errors. All are fatal to the call and non-retryable:
// they indicate bad data or a bad client, and they are raised before any
// mutation of the session aggregate.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownObject    = errors.New("unknown object id")
	ErrUnknownNode      = errors.New("unknown node id")
	ErrNodeKindMismatch = errors.New("event kind does not match node kind")
	ErrQuestMismatch    = errors.New("event quest does not match session quest")
)

// Apply is the runtime engine's single entry point: a pure reducer that
// turns (definition, prior state, event) into (new state, deltas).
//
// The prior state may be nil only for the first session_start_or_join of
// a brand-new session. Replayed events (id or dedupe key already in the
// ledger) return the prior state unchanged and no deltas. On error the
// prior state is returned untouched; Apply never partially mutates.
func Apply(def *quest.Definition, prior *State, evt *Event, now time.Time) (*State, []Delta, error) {
	if def == nil {
		return prior, nil, fmt.Errorf("definition is required")
	}
	if err := evt.Validate(); err != nil {
		return prior, nil, fmt.Errorf("validating event: %w", err)
	}

	if prior == nil && evt.Kind != EventSessionStartOrJoin {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, evt.SessionId)
	}

	// Idempotency short-circuit happens before anything else: replays are
	// successful no-ops, not errors.
	if prior != nil && (prior.Events.Has(evt.Id) || prior.Dedupe.Has(evt.DedupeKey)) {
		return prior, nil, nil
	}

	// Validate identifiers before touching the aggregate.
	if err := check(def, prior, evt); err != nil {
		return prior, nil, err
	}

	state := prior
	r := &reducer{def: def, now: now, visited: map[string]bool{}}
	if state == nil {
		state = NewState(evt.SessionId, evt.QuestId, evt.QuestVersion, now)
		r.emit(Delta{Kind: DeltaSessionCreated})
	} else {
		state = state.Clone()
	}
	r.state = state

	switch evt.Kind {
	case EventSessionStartOrJoin:
		r.startOrJoin(evt)
	case EventObjectArrive:
		r.objectArrive(evt)
	case EventNodeComplete:
		r.nodeComplete(evt)
	case EventPuzzleSubmit:
		r.submit(evt, true)
	case EventActionSubmit:
		r.submit(evt, false)
	}

	state.Events.Add(evt.Id)
	state.Dedupe.Add(evt.DedupeKey)
	state.Version++

	return state, r.deltas, nil
}

// check validates every identifier an event references so a failing event
// can be rejected without mutating state.
func check(def *quest.Definition, prior *State, evt *Event) error {
	switch evt.Kind {
	case EventSessionStartOrJoin:
		if prior != nil && (prior.QuestId != evt.QuestId || prior.QuestVersion != evt.QuestVersion) {
			return fmt.Errorf("%w: session is %s@%s, event is %s@%s", ErrQuestMismatch,
				prior.QuestId, prior.QuestVersion, evt.QuestId, evt.QuestVersion)
		}
	case EventObjectArrive:
		if def.Object(evt.ObjectId) == nil {
			return fmt.Errorf("%w: %s", ErrUnknownObject, evt.ObjectId)
		}
	case EventNodeComplete:
		node := def.Node(evt.NodeId)
		if node == nil {
			return fmt.Errorf("%w: %s", ErrUnknownNode, evt.NodeId)
		}
		if node.Kind.Branching() {
			return fmt.Errorf("%w: node %s is %s, complete only applies to non-branching nodes",
				ErrNodeKindMismatch, evt.NodeId, node.Kind)
		}
	case EventPuzzleSubmit, EventActionSubmit:
		node := def.Node(evt.NodeId)
		if node == nil {
			return fmt.Errorf("%w: %s", ErrUnknownNode, evt.NodeId)
		}
		want := quest.NodeKindPuzzle
		if evt.Kind == EventActionSubmit {
			want = quest.NodeKindAction
		}
		if node.Kind != want {
			return fmt.Errorf("%w: node %s is %s, expected %s",
				ErrNodeKindMismatch, evt.NodeId, node.Kind, want)
		}
	}
	return nil
}

// reducer carries the mutable context of one event application.
type reducer struct {
	def    *quest.Definition
	state  *State
	now    time.Time
	deltas []Delta
	// visited guards the auto-advance traversal against cycles within a
	// single application: one (player, node) pair is advanced at most once.
	visited map[string]bool
}

func (r *reducer) emit(d Delta) {
	r.deltas = append(r.deltas, d)
}

func (r *reducer) startOrJoin(evt *Event) {
	if _, ok := r.state.Players[evt.PlayerId]; !ok {
		r.state.Players[evt.PlayerId] = &Player{
			Id:       evt.PlayerId,
			Name:     evt.PlayerName,
			JoinedAt: r.now,
			Status:   PlayerActive,
		}
		r.emit(Delta{Kind: DeltaPlayerJoined, PlayerId: evt.PlayerId})
	}
	r.recomputeCurrent(evt.PlayerId)
}

func (r *reducer) objectArrive(evt *Event) {
	r.ensurePlayer(evt.PlayerId)

	os := r.state.ObjectState(evt.PlayerId, evt.ObjectId)
	if os.ArrivedAt == nil {
		at := r.now
		os.ArrivedAt = &at
		r.emit(Delta{Kind: DeltaObjectArrived, PlayerId: evt.PlayerId, ObjectId: evt.ObjectId})
	}

	if entry := r.def.EntryNode(evt.ObjectId); entry != nil {
		r.unlockAndAdvance(evt.PlayerId, entry.Id)
	}
	r.recomputeCurrent(evt.PlayerId)
}

func (r *reducer) nodeComplete(evt *Event) {
	r.ensurePlayer(evt.PlayerId)

	node := r.def.Node(evt.NodeId)
	ns := r.state.NodeState(evt.PlayerId, evt.NodeId)
	if ns.advance(NodeUnlocked) {
		r.emit(Delta{Kind: DeltaNodeUnlocked, PlayerId: evt.PlayerId, NodeId: evt.NodeId})
	}
	r.completeNode(evt.PlayerId, node, "")
	r.recomputeCurrent(evt.PlayerId)
}

// submit handles puzzle and action submissions. Only puzzles award
// points; actions share the branching and gating semantics otherwise.
func (r *reducer) submit(evt *Event, scoring bool) {
	r.ensurePlayer(evt.PlayerId)

	node := r.def.Node(evt.NodeId)
	ns := r.state.NodeState(evt.PlayerId, evt.NodeId)

	if ns.advance(NodeUnlocked) {
		r.emit(Delta{Kind: DeltaNodeUnlocked, PlayerId: evt.PlayerId, NodeId: evt.NodeId})
	}

	firstSuccess := evt.Outcome.Succeeded() && !ns.Outcome.Succeeded()

	// A later submission may overwrite a failed outcome, but a recorded
	// success is final.
	prevOutcome := ns.Outcome
	if !ns.Outcome.Succeeded() {
		ns.Outcome = evt.Outcome
		ns.AttemptGroupId = evt.AttemptGroupId
	}
	completed := ns.advance(NodeCompleted)
	if ns.CompletedAt == nil {
		at := r.now
		ns.CompletedAt = &at
	}
	if completed || ns.Outcome != prevOutcome {
		r.emit(Delta{Kind: DeltaNodeCompleted, PlayerId: evt.PlayerId, NodeId: evt.NodeId, Outcome: ns.Outcome})
	}

	if scoring && firstSuccess && evt.Points != 0 {
		p := r.state.Players[evt.PlayerId]
		p.Score += evt.Points
		r.emit(Delta{Kind: DeltaScoreChanged, PlayerId: evt.PlayerId, Score: p.Score})
	}

	if evt.Outcome.Failed() && !ns.Outcome.Succeeded() {
		// Failure resolves per player immediately; with no failure edge
		// the node simply stays completed-with-failure for retry.
		for _, next := range node.Successors(false) {
			r.unlockAndAdvance(evt.PlayerId, next)
		}
		r.recomputeCurrent(evt.PlayerId)
		return
	}

	r.resolveSuccess(evt.PlayerId, node)
}

// resolveSuccess advances the success branch, deferring to the node's
// gate when one is declared. Gate types other than all_players_success
// fall back to per-player resolution; see evaluateGate.
func (r *reducer) resolveSuccess(playerId string, node *quest.NodeDef) {
	if !node.Gate.Active() || node.Gate.Type != quest.GateAllPlayersSuccess {
		r.advanceSuccess(playerId, node)
		return
	}

	players, satisfied := r.evaluateGate(node)
	if !satisfied {
		// Gate non-satisfaction is not an error: the submission is
		// recorded and the forward edge stays locked.
		return
	}

	// All eligible players advance in the same application; no player
	// passes a synchronized gate alone.
	for _, pid := range players {
		r.advanceSuccess(pid, node)
	}
}

func (r *reducer) advanceSuccess(playerId string, node *quest.NodeDef) {
	for _, next := range node.Successors(true) {
		r.unlockAndAdvance(playerId, next)
	}
	r.recomputeCurrent(playerId)
}

// unlockAndAdvance unlocks the node for the player and, when the node
// requires no player input, completes it immediately and recurses into
// its successors. The visited set keeps the traversal finite even on
// malformed graphs.
func (r *reducer) unlockAndAdvance(playerId, nodeId string) {
	key := playerId + "\x00" + nodeId
	if r.visited[key] {
		return
	}
	r.visited[key] = true

	node := r.def.Node(nodeId)
	if node == nil {
		return
	}

	ns := r.state.NodeState(playerId, nodeId)
	if ns.advance(NodeUnlocked) {
		r.emit(Delta{Kind: DeltaNodeUnlocked, PlayerId: playerId, NodeId: nodeId})
	}

	if node.AutoCompletes() {
		r.completeNode(playerId, node, "")
	}
}

// completeNode marks a non-branching node completed, cascades object
// completion for end-state nodes, and advances the linear successors.
func (r *reducer) completeNode(playerId string, node *quest.NodeDef, outcome Outcome) {
	ns := r.state.NodeState(playerId, node.Id)
	if ns.advance(NodeCompleted) {
		at := r.now
		ns.CompletedAt = &at
		if outcome != "" {
			ns.Outcome = outcome
		}
		r.emit(Delta{Kind: DeltaNodeCompleted, PlayerId: playerId, NodeId: node.Id})
	}

	if node.Kind == quest.NodeKindState && node.Role == quest.StateRoleEnd {
		r.completeObject(playerId, node.ObjectId)
	}

	for _, next := range node.Next {
		r.unlockAndAdvance(playerId, next)
	}
}

// completeObject records first-time completion of an object for a player
// and flips the session to ended once every active player has completed
// the quest's end object.
func (r *reducer) completeObject(playerId, objectId string) {
	os := r.state.ObjectState(playerId, objectId)
	if os.CompletedAt != nil {
		return
	}
	at := r.now
	os.CompletedAt = &at
	// Version is incremented after dispatch; +1 is this event's version.
	os.CompletedSeq = r.state.Version + 1
	r.emit(Delta{Kind: DeltaObjectCompleted, PlayerId: playerId, ObjectId: objectId})

	if objectId != r.def.EndObjectId || r.state.Status != SessionActive {
		return
	}
	for pid, p := range r.state.Players {
		if p.Status != PlayerActive {
			continue
		}
		if !r.state.ObjectCompleted(pid, r.def.EndObjectId) {
			return
		}
	}
	r.state.Status = SessionEnded
	r.emit(Delta{Kind: DeltaSessionCompleted})
}

// ensurePlayer registers players seen for the first time through a
// non-join event so late joiners' retried events still land.
func (r *reducer) ensurePlayer(playerId string) {
	if _, ok := r.state.Players[playerId]; ok {
		return
	}
	r.state.Players[playerId] = &Player{
		Id:       playerId,
		JoinedAt: r.now,
		Status:   PlayerActive,
	}
	r.emit(Delta{Kind: DeltaPlayerJoined, PlayerId: playerId})
}

// recomputeCurrent refreshes the player's current-object pointer.
func (r *reducer) recomputeCurrent(playerId string) {
	p := r.state.Players[playerId]
	if p == nil {
		return
	}
	p.CurrentObjectId = CurrentObjectId(r.def, r.state, playerId)
}
