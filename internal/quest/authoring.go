package quest

import (
	"fmt"
	"regexp"
	"time"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// StepKind identifies an authored timeline step shape.
type StepKind string

const (
	StepKindText   StepKind = "text"
	StepKindChat   StepKind = "chat"
	StepKindAudio  StepKind = "audio"
	StepKindVideo  StepKind = "video"
	StepKindImage  StepKind = "image"
	StepKindPuzzle StepKind = "puzzle"
	StepKindAction StepKind = "action"
	StepKindEffect StepKind = "effect"
)

// nodeKind maps an authored step kind onto its compiled node kind.
func (k StepKind) nodeKind() (NodeKind, bool) {
	nk := NodeKind(k)
	if nk.Known() && nk != NodeKindState {
		return nk, true
	}
	return "", false
}

// Step is one authored timeline entry on a checkpoint.
type Step struct {
	Kind StepKind `json:"kind"`
	// Disabled steps are skipped by the compiler without renumbering
	// the remaining steps.
	Disabled bool `json:"disabled,omitempty"`
	// Blocking overrides the definition-wide default when set.
	Blocking *bool     `json:"blocking,omitempty"`
	Gate     *GateSpec `json:"gate,omitempty"`

	Content  string `json:"content,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	PuzzleId string `json:"puzzle_id,omitempty"`
	ActionId string `json:"action_id,omitempty"`
	Effect   string `json:"effect,omitempty"`
}

// Validate satisfies the usual ValidatingSpec contract for authored steps.
func (s *Step) Validate() error {
	el := errors.NewErrorList()

	if _, ok := s.Kind.nodeKind(); !ok {
		el.Add(fmt.Errorf("unknown step kind %q", s.Kind))
		return el.Err()
	}

	switch s.Kind {
	case StepKindText, StepKindChat:
		if s.Content == "" {
			el.Add(fmt.Errorf("%s step: content is required", s.Kind))
		}
	case StepKindAudio, StepKindVideo, StepKindImage:
		if s.MediaURL == "" {
			el.Add(fmt.Errorf("%s step: media_url is required", s.Kind))
		}
	case StepKindPuzzle:
		if s.PuzzleId == "" {
			el.Add(fmt.Errorf("puzzle step: puzzle_id is required"))
		}
	case StepKindAction:
		if s.ActionId == "" {
			el.Add(fmt.Errorf("action step: action_id is required"))
		}
	case StepKindEffect:
		if s.Effect == "" {
			el.Add(fmt.Errorf("effect step: effect is required"))
		}
	}

	return el.Err()
}

// Checkpoint is an authored physical location with its ordered timeline.
type Checkpoint struct {
	Id    string `json:"id"`
	Title string `json:"title"`
	// Order is the itinerary ordering number used to sort checkpoints.
	Order int `json:"order"`
	// IsStart marks the explicit quest start checkpoint.
	IsStart bool `json:"is_start,omitempty"`
	// Next lists explicit successor checkpoints. When empty the compiler
	// links to the next checkpoint in itinerary order.
	Next     []string  `json:"next,omitempty"`
	Gate     *GateSpec `json:"gate,omitempty"`
	Timeline []Step    `json:"timeline,omitempty"`
}

// Validate satisfies the usual ValidatingSpec contract for checkpoints.
func (c *Checkpoint) Validate() error {
	el := errors.NewErrorList()

	if c.Id == "" {
		el.Add(fmt.Errorf("id is required"))
	} else if !identifierPattern.MatchString(c.Id) {
		el.Add(fmt.Errorf("id %q must contain only letters, digits, hyphens, and underscores", c.Id))
	}
	if c.Title == "" {
		el.Add(fmt.Errorf("title is required"))
	}

	for i := range c.Timeline {
		if err := c.Timeline[i].Validate(); err != nil {
			el.Add(fmt.Errorf("step %d: %w", i, err))
		}
	}

	return el.Err()
}

// Input is the full authoring payload handed to the compiler.
type Input struct {
	QuestId       string    `json:"quest_id"`
	QuestVersion  string    `json:"quest_version"`
	SchemaVersion uint      `json:"schema_version"`
	PublishedAt   time.Time `json:"published_at"`

	WindowSize      int  `json:"window_size"`
	DefaultBlocking bool `json:"default_blocking"`
	// HideCompleted drops the most recently completed object from the
	// visibility window.
	HideCompleted bool `json:"hide_completed,omitempty"`

	Checkpoints []Checkpoint `json:"checkpoints"`
}

// Validate satisfies the usual ValidatingSpec contract for inputs.
func (in *Input) Validate() error {
	el := errors.NewErrorList()

	if in.QuestId == "" {
		el.Add(fmt.Errorf("quest_id is required"))
	}
	if in.QuestVersion == "" {
		el.Add(fmt.Errorf("quest_version is required"))
	}
	if in.WindowSize < 1 {
		el.Add(fmt.Errorf("window_size must be at least 1"))
	}
	if len(in.Checkpoints) == 0 {
		el.Add(fmt.Errorf("at least one checkpoint is required"))
	}

	seen := map[string]bool{}
	for i := range in.Checkpoints {
		c := &in.Checkpoints[i]
		if err := c.Validate(); err != nil {
			el.Add(fmt.Errorf("checkpoint %d (%s): %w", i, c.Id, err))
		}
		if c.Id != "" && seen[c.Id] {
			el.Add(fmt.Errorf("checkpoint %d: duplicate id %q", i, c.Id))
		}
		seen[c.Id] = true
	}

	return el.Err()
}
