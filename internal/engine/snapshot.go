package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/pixil98/go-quest/internal/quest"
)

// ObjectLifecycle is the client-facing lifecycle of a checkpoint.
type ObjectLifecycle string

const (
	LifecycleHidden    ObjectLifecycle = "HIDDEN"
	LifecycleAvailable ObjectLifecycle = "AVAILABLE"
	LifecycleArrived   ObjectLifecycle = "ARRIVED"
	LifecycleCompleted ObjectLifecycle = "COMPLETED"
)

// SnapshotPlayer summarizes one session participant.
type SnapshotPlayer struct {
	Id              string       `json:"id"`
	Name            string       `json:"name"`
	Status          PlayerStatus `json:"status"`
	Score           int          `json:"score"`
	CurrentObjectId string       `json:"current_object_id,omitempty"`
}

// SnapshotObject is one checkpoint inside the visibility window.
type SnapshotObject struct {
	Id        string          `json:"id"`
	Title     string          `json:"title"`
	Lifecycle ObjectLifecycle `json:"lifecycle"`
}

// SnapshotNode is one timeline node of a visible checkpoint.
type SnapshotNode struct {
	Id       string         `json:"id"`
	ObjectId string         `json:"object_id"`
	Kind     quest.NodeKind `json:"kind"`
	Status   NodeStatus     `json:"status"`
	Outcome  Outcome        `json:"outcome,omitempty"`
	Blocking bool           `json:"blocking"`
	// Content is the rendered narrative for text/chat nodes.
	Content  string `json:"content,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// Snapshot is the read-only per-player projection serialized to clients
// after every state change. Node states are restricted to objects inside
// the visibility window so clients cannot observe future content.
type Snapshot struct {
	ServerTime    time.Time     `json:"server_time"`
	SessionId     string        `json:"session_id"`
	QuestId       string        `json:"quest_id"`
	QuestVersion  string        `json:"quest_version"`
	SessionStatus SessionStatus `json:"session_status"`
	PlayerId      string        `json:"player_id"`

	Players []SnapshotPlayer `json:"players"`

	CurrentObjectId    string           `json:"current_object_id,omitempty"`
	VisibleObjectIds   []string         `json:"visible_object_ids"`
	CompletedObjectIds []string         `json:"completed_object_ids"`
	ArrivedObjectIds   []string         `json:"arrived_object_ids"`
	Objects            []SnapshotObject `json:"objects"`
	Nodes              []SnapshotNode   `json:"nodes"`
}

// BuildSnapshot projects the requesting player's view of the session.
func BuildSnapshot(def *quest.Definition, state *State, playerId string, now time.Time) (*Snapshot, error) {
	player := state.Players[playerId]
	if player == nil {
		return nil, fmt.Errorf("player %q is not part of session %s", playerId, state.Id)
	}

	order := ObjectOrder(def)
	avail := availableObjects(def, state, playerId)
	window := visibleWindow(def, state, playerId, order, avail)

	snap := &Snapshot{
		ServerTime:         now,
		SessionId:          state.Id,
		QuestId:            state.QuestId,
		QuestVersion:       state.QuestVersion,
		SessionStatus:      state.Status,
		PlayerId:           playerId,
		CurrentObjectId:    player.CurrentObjectId,
		VisibleObjectIds:   window,
		CompletedObjectIds: []string{},
		ArrivedObjectIds:   []string{},
	}

	for _, pid := range sortedKeys(state.Players) {
		p := state.Players[pid]
		snap.Players = append(snap.Players, SnapshotPlayer{
			Id:              p.Id,
			Name:            p.Name,
			Status:          p.Status,
			Score:           p.Score,
			CurrentObjectId: p.CurrentObjectId,
		})
	}

	for _, oid := range order {
		if state.ObjectCompleted(playerId, oid) {
			snap.CompletedObjectIds = append(snap.CompletedObjectIds, oid)
		}
		if state.ObjectArrived(playerId, oid) {
			snap.ArrivedObjectIds = append(snap.ArrivedObjectIds, oid)
		}
	}

	visible := make(map[string]bool, len(window))
	for _, oid := range window {
		visible[oid] = true
		obj := def.Object(oid)
		snap.Objects = append(snap.Objects, SnapshotObject{
			Id:        oid,
			Title:     obj.Title,
			Lifecycle: lifecycle(state, playerId, oid, avail),
		})
	}

	for _, nid := range sortedNodeIds(def) {
		node := def.Node(nid)
		if !visible[node.ObjectId] {
			continue
		}
		sn := SnapshotNode{
			Id:       node.Id,
			ObjectId: node.ObjectId,
			Kind:     node.Kind,
			Status:   NodeLocked,
			Blocking: node.Blocking,
			MediaURL: node.MediaURL,
		}
		if ns := state.PeekNodeState(playerId, nid); ns != nil {
			sn.Status = ns.Status
			sn.Outcome = ns.Outcome
		}
		if node.Content != "" {
			rendered, err := quest.ExpandNarrative(node.Content, quest.NarrativeData{
				PlayerName:  player.Name,
				ObjectTitle: def.Object(node.ObjectId).Title,
				QuestId:     state.QuestId,
			})
			if err != nil {
				return nil, fmt.Errorf("rendering node %s: %w", nid, err)
			}
			sn.Content = rendered
		}
		snap.Nodes = append(snap.Nodes, sn)
	}

	return snap, nil
}

// lifecycle computes the window-local lifecycle of one object.
func lifecycle(state *State, playerId, objectId string, avail map[string]bool) ObjectLifecycle {
	switch {
	case state.ObjectCompleted(playerId, objectId):
		return LifecycleCompleted
	case state.ObjectArrived(playerId, objectId):
		return LifecycleArrived
	case avail[objectId]:
		return LifecycleAvailable
	}
	return LifecycleHidden
}

// ObjectOrder returns the deterministic object ordering: breadth-first
// from the start object following out edges, with any objects unreachable
// from start appended in lexicographic order.
func ObjectOrder(def *quest.Definition) []string {
	var order []string
	seen := map[string]bool{}

	queue := []string{def.StartObjectId}
	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]
		if seen[oid] || def.Object(oid) == nil {
			continue
		}
		seen[oid] = true
		order = append(order, oid)
		queue = append(queue, def.Object(oid).OutObjectIds...)
	}

	for _, oid := range sortedKeys(def.Objects) {
		if !seen[oid] {
			order = append(order, oid)
		}
	}

	return order
}

// availableObjects computes the availability closure for a player: the
// start object plus every declared successor of a completed object.
func availableObjects(def *quest.Definition, state *State, playerId string) map[string]bool {
	avail := map[string]bool{def.StartObjectId: true}
	for oid := range state.Objects[playerId] {
		if !state.ObjectCompleted(playerId, oid) {
			continue
		}
		avail[oid] = true
		obj := def.Object(oid)
		if obj == nil {
			continue
		}
		for _, out := range obj.OutObjectIds {
			avail[out] = true
		}
	}
	return avail
}

// CurrentObjectId selects the player's current object: the first object
// in deterministic order that is available and not completed, or empty
// once the quest is finished for the player.
func CurrentObjectId(def *quest.Definition, state *State, playerId string) string {
	avail := availableObjects(def, state, playerId)
	for _, oid := range ObjectOrder(def) {
		if avail[oid] && !state.ObjectCompleted(playerId, oid) {
			return oid
		}
	}
	return ""
}

// visibleWindow computes the bounded visibility set: the most recently
// completed object (when policy includes it), the current object, then
// other available objects in deterministic order, truncated to the
// window size. Objects outside the window stay hidden on purpose; the
// window is a narrative-pacing mechanism.
func visibleWindow(def *quest.Definition, state *State, playerId string, order []string, avail map[string]bool) []string {
	size := def.Policies.VisibilityWindowSize
	if size < 1 {
		size = 1
	}

	var window []string
	included := map[string]bool{}
	add := func(oid string) {
		if oid == "" || included[oid] || len(window) >= size {
			return
		}
		included[oid] = true
		window = append(window, oid)
	}

	current := CurrentObjectId(def, state, playerId)
	if def.Policies.IncludeCompleted {
		if last := lastCompleted(state, playerId); last != current {
			add(last)
		}
	}
	add(current)

	for _, oid := range order {
		if len(window) >= size {
			break
		}
		if avail[oid] && !state.ObjectCompleted(playerId, oid) {
			add(oid)
		}
	}

	if window == nil {
		window = []string{}
	}
	return window
}

// lastCompleted returns the player's most recently completed object id.
// Recency comes from the completion sequence, not wall-clock time, so
// completions within one clock tick still order by application order.
func lastCompleted(state *State, playerId string) string {
	var last string
	var lastSeq uint64
	for _, oid := range sortedKeys(state.Objects[playerId]) {
		os := state.Objects[playerId][oid]
		if os.CompletedAt == nil {
			continue
		}
		if last == "" || os.CompletedSeq > lastSeq {
			last = oid
			lastSeq = os.CompletedSeq
		}
	}
	return last
}

func sortedNodeIds(def *quest.Definition) []string {
	return sortedKeys(def.Nodes)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
