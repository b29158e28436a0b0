package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-quest/internal/engine"
)

// FrameType identifies the payload of one client-bound frame.
type FrameType string

const (
	FrameDeltas   FrameType = "deltas"
	FrameSnapshot FrameType = "snapshot"
)

// Frame is the envelope relayed over a player's subject: either a delta
// batch or a full refreshed snapshot.
type Frame struct {
	Type     FrameType        `json:"type"`
	Deltas   []engine.Delta   `json:"deltas,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
}

// PlayerSubject returns the NATS subject carrying one player's frames.
func PlayerSubject(sessionId, playerId string) string {
	return fmt.Sprintf("quest.%s.%s", sessionId, playerId)
}

// QuestPublisher publishes engine output to per-player NATS subjects. It
// satisfies session.Publisher.
type QuestPublisher struct {
	server *NatsServer
}

// NewQuestPublisher wraps a NatsServer for per-player frame delivery.
func NewQuestPublisher(server *NatsServer) *QuestPublisher {
	return &QuestPublisher{server: server}
}

func (p *QuestPublisher) PublishDeltas(sessionId, playerId string, deltas []engine.Delta) error {
	return p.publish(sessionId, playerId, Frame{Type: FrameDeltas, Deltas: deltas})
}

func (p *QuestPublisher) PublishSnapshot(sessionId, playerId string, snap *engine.Snapshot) error {
	return p.publish(sessionId, playerId, Frame{Type: FrameSnapshot, Snapshot: snap})
}

func (p *QuestPublisher) publish(sessionId, playerId string, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshalling frame: %w", err)
	}
	return p.server.Publish(PlayerSubject(sessionId, playerId), data)
}
