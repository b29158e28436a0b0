package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"
)

// EventKind identifies the kind of an incoming event.
type EventKind string

const (
	// EventSessionStartOrJoin creates the session if absent and registers
	// the player if unseen.
	EventSessionStartOrJoin EventKind = "session_start_or_join"
	// EventObjectArrive records a player's first arrival at a checkpoint.
	EventObjectArrive EventKind = "object_arrive"
	// EventNodeComplete completes a non-branching timeline node.
	EventNodeComplete EventKind = "node_complete"
	// EventPuzzleSubmit records an externally judged puzzle outcome.
	EventPuzzleSubmit EventKind = "puzzle_submit"
	// EventActionSubmit records an externally judged action outcome.
	// Identical branching semantics to puzzle submission, but never
	// awards points.
	EventActionSubmit EventKind = "action_submit"
)

// Event is the common envelope for all event kinds. Id and DedupeKey feed
// the idempotency ledgers: Id absorbs redelivery of the same submission,
// DedupeKey absorbs retries that were re-submitted under a new id.
type Event struct {
	Id        string     `json:"event_id"`
	DedupeKey string     `json:"dedupe_key,omitempty"`
	Kind      EventKind  `json:"kind"`
	SessionId string     `json:"session_id"`
	PlayerId  string     `json:"player_id"`
	SentAt    *time.Time `json:"sent_at,omitempty"`

	// session_start_or_join fields.
	PlayerName   string `json:"player_name,omitempty"`
	QuestId      string `json:"quest_id,omitempty"`
	QuestVersion string `json:"quest_version,omitempty"`

	// object_arrive fields.
	ObjectId string `json:"object_id,omitempty"`

	// node_complete / puzzle_submit / action_submit fields.
	NodeId         string  `json:"node_id,omitempty"`
	Outcome        Outcome `json:"outcome,omitempty"`
	Points         int     `json:"points,omitempty"`
	AttemptGroupId string  `json:"attempt_group_id,omitempty"`
}

// NewEventId mints a globally unique event id.
func NewEventId() string {
	return uuid.New().String()
}

// Validate checks the envelope and the kind-specific required fields.
func (e *Event) Validate() error {
	el := errors.NewErrorList()

	if e.Id == "" {
		el.Add(fmt.Errorf("event_id is required"))
	}
	if e.SessionId == "" {
		el.Add(fmt.Errorf("session_id is required"))
	}
	if e.PlayerId == "" {
		el.Add(fmt.Errorf("player_id is required"))
	}

	switch e.Kind {
	case EventSessionStartOrJoin:
		if e.PlayerName == "" {
			el.Add(fmt.Errorf("player_name is required"))
		}
		if e.QuestId == "" {
			el.Add(fmt.Errorf("quest_id is required"))
		}
		if e.QuestVersion == "" {
			el.Add(fmt.Errorf("quest_version is required"))
		}
	case EventObjectArrive:
		if e.ObjectId == "" {
			el.Add(fmt.Errorf("object_id is required"))
		}
	case EventNodeComplete:
		if e.NodeId == "" {
			el.Add(fmt.Errorf("node_id is required"))
		}
	case EventPuzzleSubmit, EventActionSubmit:
		if e.NodeId == "" {
			el.Add(fmt.Errorf("node_id is required"))
		}
		if !e.Outcome.Known() {
			el.Add(fmt.Errorf("outcome must be success, fail, or failure"))
		}
	default:
		el.Add(fmt.Errorf("unknown event kind %q", e.Kind))
	}

	return el.Err()
}
