package engine

// DeltaKind identifies a discrete change produced by applying an event.
type DeltaKind string

const (
	DeltaSessionCreated   DeltaKind = "session_created"
	DeltaPlayerJoined     DeltaKind = "player_joined"
	DeltaObjectArrived    DeltaKind = "object_arrived"
	DeltaObjectCompleted  DeltaKind = "object_completed"
	DeltaNodeUnlocked     DeltaKind = "node_unlocked"
	DeltaNodeCompleted    DeltaKind = "node_completed"
	DeltaScoreChanged     DeltaKind = "score_changed"
	DeltaSessionCompleted DeltaKind = "session_completed"
)

// Delta is one typed change notification. A single applied event may
// produce many deltas (cascading unlocks, simultaneous gate releases).
type Delta struct {
	Kind     DeltaKind `json:"kind"`
	PlayerId string    `json:"player_id,omitempty"`
	ObjectId string    `json:"object_id,omitempty"`
	NodeId   string    `json:"node_id,omitempty"`
	Outcome  Outcome   `json:"outcome,omitempty"`
	// Score is the player's new cumulative score on score_changed deltas.
	Score int `json:"score,omitempty"`
}

// PlayerIds returns the distinct players touched by the deltas, in first
// appearance order. Deltas without a player id affect every player.
func PlayerIds(deltas []Delta) []string {
	var ids []string
	seen := map[string]bool{}
	for _, d := range deltas {
		if d.PlayerId == "" || seen[d.PlayerId] {
			continue
		}
		seen[d.PlayerId] = true
		ids = append(ids, d.PlayerId)
	}
	return ids
}
