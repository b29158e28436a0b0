package engine

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle status of a session aggregate.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// PlayerStatus is the lifecycle status of a player within a session.
type PlayerStatus string

const (
	PlayerActive PlayerStatus = "active"
	PlayerLeft   PlayerStatus = "left"
)

// NodeStatus is the per-player status of a timeline node. Transitions are
// monotonic: locked -> unlocked -> completed, never backward.
type NodeStatus string

const (
	NodeLocked    NodeStatus = "locked"
	NodeUnlocked  NodeStatus = "unlocked"
	NodeCompleted NodeStatus = "completed"
)

// rank orders statuses for monotonicity checks.
func (s NodeStatus) rank() int {
	switch s {
	case NodeUnlocked:
		return 1
	case NodeCompleted:
		return 2
	}
	return 0
}

// Outcome is a puzzle or action result. Both "fail" and "failure" are
// accepted as synonyms; external callers may use either and the value
// they sent is preserved.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
	OutcomeFailure Outcome = "failure"
)

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool { return o == OutcomeSuccess }

// Failed reports whether the outcome is either failure synonym.
func (o Outcome) Failed() bool { return o == OutcomeFail || o == OutcomeFailure }

// Known reports whether the outcome is one of the accepted literals.
func (o Outcome) Known() bool { return o.Succeeded() || o.Failed() }

// Player is one registered participant in a session.
type Player struct {
	Id       string       `json:"id"`
	Name     string       `json:"name"`
	JoinedAt time.Time    `json:"joined_at"`
	Status   PlayerStatus `json:"status"`
	// CurrentObjectId is empty once the player has finished the quest.
	CurrentObjectId string `json:"current_object_id,omitempty"`
	Score           int    `json:"score"`
}

// ObjectState tracks a player's progress through one checkpoint. Both
// timestamps are set-once.
type ObjectState struct {
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// CompletedSeq is the aggregate version of the event that completed
	// the object. It orders completions even when two events land within
	// one clock tick and their timestamps tie.
	CompletedSeq uint64 `json:"completed_seq,omitempty"`
}

// NodeState tracks a player's progress through one timeline node.
type NodeState struct {
	Status      NodeStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Outcome     Outcome    `json:"outcome,omitempty"`
	// AttemptGroupId correlates submissions belonging to one synchronized
	// attempt round.
	AttemptGroupId string `json:"attempt_group_id,omitempty"`
}

// ledgerLimit bounds the idempotency ledgers. Entries are evicted in
// insertion order once the limit is hit, which keeps aggregates bounded
// while preserving the idempotency guarantee for realistic retry windows.
const ledgerLimit = 4096

// Ledger is a FIFO-bounded set of processed identifiers.
type Ledger struct {
	order []string
	seen  map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: map[string]struct{}{}}
}

// Has reports whether the id has been recorded.
func (l *Ledger) Has(id string) bool {
	if l == nil || id == "" {
		return false
	}
	_, ok := l.seen[id]
	return ok
}

// Add records the id, evicting the oldest entry past the limit.
func (l *Ledger) Add(id string) {
	if id == "" || l.Has(id) {
		return
	}
	if l.seen == nil {
		l.seen = map[string]struct{}{}
	}
	l.order = append(l.order, id)
	l.seen[id] = struct{}{}
	if len(l.order) > ledgerLimit {
		evicted := l.order[0]
		l.order = l.order[1:]
		delete(l.seen, evicted)
	}
}

// Len returns the number of recorded ids.
func (l *Ledger) Len() int { return len(l.order) }

// MarshalJSON persists the ledger as its ordered id list.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.order)
}

// UnmarshalJSON rebuilds the ledger from an ordered id list.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return err
	}
	l.order = order
	l.seen = make(map[string]struct{}, len(order))
	for _, id := range order {
		l.seen[id] = struct{}{}
	}
	return nil
}

func (l *Ledger) clone() *Ledger {
	if l == nil {
		return NewLedger()
	}
	c := &Ledger{
		order: append([]string(nil), l.order...),
		seen:  make(map[string]struct{}, len(l.seen)),
	}
	for id := range l.seen {
		c.seen[id] = struct{}{}
	}
	return c
}

// State is the sole mutable aggregate for one session. It is only ever
// mutated by Apply; callers load it, apply one event, and persist the
// result under a single writer per session id.
type State struct {
	Id           string        `json:"id"`
	QuestId      string        `json:"quest_id"`
	QuestVersion string        `json:"quest_version"`
	Status       SessionStatus `json:"status"`

	Players map[string]*Player `json:"players"`
	// Objects and Nodes are keyed player id -> object/node id.
	Objects map[string]map[string]*ObjectState `json:"objects"`
	Nodes   map[string]map[string]*NodeState   `json:"nodes"`

	Events *Ledger `json:"processed_events"`
	Dedupe *Ledger `json:"processed_dedupe_keys"`

	// Version increases by one per applied event.
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NewState creates an empty session aggregate.
func NewState(id, questId, questVersion string, now time.Time) *State {
	return &State{
		Id:           id,
		QuestId:      questId,
		QuestVersion: questVersion,
		Status:       SessionActive,
		Players:      map[string]*Player{},
		Objects:      map[string]map[string]*ObjectState{},
		Nodes:        map[string]map[string]*NodeState{},
		Events:       NewLedger(),
		Dedupe:       NewLedger(),
		CreatedAt:    now,
	}
}

// Clone returns a deep copy. Apply mutates only the copy so a failed
// application can never partially mutate the caller's aggregate.
func (s *State) Clone() *State {
	c := *s
	c.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		cp := *p
		c.Players[id] = &cp
	}
	c.Objects = make(map[string]map[string]*ObjectState, len(s.Objects))
	for pid, objs := range s.Objects {
		m := make(map[string]*ObjectState, len(objs))
		for oid, os := range objs {
			cp := *os
			m[oid] = &cp
		}
		c.Objects[pid] = m
	}
	c.Nodes = make(map[string]map[string]*NodeState, len(s.Nodes))
	for pid, nodes := range s.Nodes {
		m := make(map[string]*NodeState, len(nodes))
		for nid, ns := range nodes {
			cp := *ns
			m[nid] = &cp
		}
		c.Nodes[pid] = m
	}
	c.Events = s.Events.clone()
	c.Dedupe = s.Dedupe.clone()
	return &c
}

// ObjectState returns the player's state for the object, creating an
// empty record on first access.
func (s *State) ObjectState(playerId, objectId string) *ObjectState {
	objs := s.Objects[playerId]
	if objs == nil {
		objs = map[string]*ObjectState{}
		s.Objects[playerId] = objs
	}
	os := objs[objectId]
	if os == nil {
		os = &ObjectState{}
		objs[objectId] = os
	}
	return os
}

// NodeState returns the player's state for the node, creating a locked
// record on first access.
func (s *State) NodeState(playerId, nodeId string) *NodeState {
	nodes := s.Nodes[playerId]
	if nodes == nil {
		nodes = map[string]*NodeState{}
		s.Nodes[playerId] = nodes
	}
	ns := nodes[nodeId]
	if ns == nil {
		ns = &NodeState{Status: NodeLocked}
		nodes[nodeId] = ns
	}
	return ns
}

// PeekNodeState returns the player's state for the node without creating
// a record.
func (s *State) PeekNodeState(playerId, nodeId string) *NodeState {
	return s.Nodes[playerId][nodeId]
}

// ObjectCompleted reports whether the object is completed for the player.
func (s *State) ObjectCompleted(playerId, objectId string) bool {
	os := s.Objects[playerId][objectId]
	return os != nil && os.CompletedAt != nil
}

// ObjectArrived reports whether the player has arrived at the object.
func (s *State) ObjectArrived(playerId, objectId string) bool {
	os := s.Objects[playerId][objectId]
	return os != nil && os.ArrivedAt != nil
}

// advance raises the node status if the target is higher; statuses never
// move backward.
func (ns *NodeState) advance(target NodeStatus) bool {
	if target.rank() <= ns.Status.rank() {
		return false
	}
	ns.Status = target
	return true
}
