package quest

import "time"

// NodeKind identifies the kind of a timeline node.
type NodeKind string

const (
	NodeKindState  NodeKind = "state"
	NodeKindText   NodeKind = "text"
	NodeKindChat   NodeKind = "chat"
	NodeKindAudio  NodeKind = "audio"
	NodeKindVideo  NodeKind = "video"
	NodeKindImage  NodeKind = "image"
	NodeKindPuzzle NodeKind = "puzzle"
	NodeKindAction NodeKind = "action"
	NodeKindEffect NodeKind = "effect"
)

// Branching reports whether nodes of this kind resolve through
// success/failure edges rather than a single linear edge list.
func (k NodeKind) Branching() bool {
	return k == NodeKindPuzzle || k == NodeKindAction
}

// Known reports whether the kind is one of the supported variants.
func (k NodeKind) Known() bool {
	switch k {
	case NodeKindState, NodeKindText, NodeKindChat, NodeKindAudio,
		NodeKindVideo, NodeKindImage, NodeKindPuzzle, NodeKindAction,
		NodeKindEffect:
		return true
	}
	return false
}

// StateRole distinguishes the synthesized boundary nodes of an object.
type StateRole string

const (
	StateRoleStart StateRole = "start"
	StateRoleEnd   StateRole = "end"
)

// GateType identifies a multiplayer gate condition.
type GateType string

const (
	GateNone              GateType = "none"
	GateAllPlayersSuccess GateType = "all_players_success"
	GateAnyPlayerDone     GateType = "any_player_done"
	GateMinCountDone      GateType = "min_count_done"
)

// GateScope identifies the set of players a gate condition ranges over.
type GateScope string

const (
	GateScopePlayer  GateScope = "player"
	GateScopeObject  GateScope = "object"
	GateScopeSession GateScope = "session"
)

// GateSpec describes a condition that must hold before a branching node's
// successful outcome unlocks its successors.
type GateSpec struct {
	Type  GateType  `json:"type"`
	Scope GateScope `json:"scope,omitempty"`
	// Players optionally restricts the gate to an explicit player subset.
	Players []string `json:"players,omitempty"`
	// MinCount is the threshold for min_count_done gates.
	MinCount int `json:"min_count,omitempty"`
	// RequireSameAttempt forces all qualifying completions to share one
	// attempt group id.
	RequireSameAttempt bool `json:"require_same_attempt,omitempty"`
}

// Active reports whether the gate imposes any condition at all.
func (g *GateSpec) Active() bool {
	return g != nil && g.Type != "" && g.Type != GateNone
}

// ObjectDef is a compiled checkpoint: a physical location with its own
// timeline of nodes.
type ObjectDef struct {
	Id           string    `json:"id"`
	Title        string    `json:"title"`
	EntryNodeId  string    `json:"entry_node_id"`
	OutObjectIds []string  `json:"out_object_ids,omitempty"`
	Gate         *GateSpec `json:"gate,omitempty"`
}

// NodeDef is one compiled timeline step. Linear kinds use Next; branching
// kinds (puzzle, action) use OnSuccess/OnFailure.
type NodeDef struct {
	Id       string    `json:"id"`
	ObjectId string    `json:"object_id"`
	Kind     NodeKind  `json:"kind"`
	Role     StateRole `json:"role,omitempty"` // state nodes only
	Blocking bool      `json:"blocking"`
	Gate     *GateSpec `json:"gate,omitempty"`

	Next      []string `json:"next,omitempty"`
	OnSuccess []string `json:"on_success,omitempty"`
	OnFailure []string `json:"on_failure,omitempty"`

	// Content is a narrative template for text/chat nodes.
	Content string `json:"content,omitempty"`
	// MediaURL points at the asset for audio/video/image nodes.
	MediaURL string `json:"media_url,omitempty"`
	PuzzleId string `json:"puzzle_id,omitempty"`
	ActionId string `json:"action_id,omitempty"`
	// Effect names the scripted effect for effect nodes.
	Effect string `json:"effect,omitempty"`
}

// Policies holds the global runtime policies of a definition.
type Policies struct {
	VisibilityWindowSize int  `json:"visibility_window_size"`
	DefaultBlocking      bool `json:"default_blocking"`
	// IncludeCompleted keeps the most recently completed object inside
	// the visibility window.
	IncludeCompleted bool `json:"include_completed"`
}

// Definition is an immutable, validated quest graph. It is published once
// and never mutated afterward; all references between objects and nodes
// are string ids into the flat maps.
type Definition struct {
	QuestId       string    `json:"quest_id"`
	QuestVersion  string    `json:"quest_version"`
	SchemaVersion uint      `json:"schema_version"`
	PublishedAt   time.Time `json:"published_at"`

	Objects map[string]*ObjectDef `json:"objects"`
	Nodes   map[string]*NodeDef   `json:"nodes"`

	StartObjectId string   `json:"start_object_id"`
	EndObjectId   string   `json:"end_object_id"`
	Policies      Policies `json:"policies"`
}

// Key returns the content-store lookup key for this definition.
func (d *Definition) Key() string {
	return d.QuestId + "@" + d.QuestVersion
}

// Object returns the object definition for id, or nil.
func (d *Definition) Object(id string) *ObjectDef {
	return d.Objects[id]
}

// Node returns the node definition for id, or nil.
func (d *Definition) Node(id string) *NodeDef {
	return d.Nodes[id]
}

// EntryNode returns the start-state node of the object, or nil.
func (d *Definition) EntryNode(objectId string) *NodeDef {
	obj := d.Objects[objectId]
	if obj == nil {
		return nil
	}
	return d.Nodes[obj.EntryNodeId]
}

// Successors returns the edge list a completed node advances through for
// the given success flag. Linear nodes ignore the flag.
func (n *NodeDef) Successors(success bool) []string {
	if !n.Kind.Branching() {
		return n.Next
	}
	if success {
		return n.OnSuccess
	}
	return n.OnFailure
}

// AutoCompletes reports whether the node completes without player input
// during auto-advance: state nodes always, other linear kinds when not
// blocking.
func (n *NodeDef) AutoCompletes() bool {
	if n.Kind.Branching() {
		return false
	}
	if n.Kind == NodeKindState {
		return true
	}
	return !n.Blocking
}
