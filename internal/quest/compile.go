package quest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// idMaxLen is the id-length budget for synthesized node ids.
const idMaxLen = 64

// Compile turns an authoring input into an immutable Definition.
//
// Checkpoints are sorted by itinerary order, boundary state nodes are
// synthesized per object, and enabled timeline steps are chained between
// them in author order. The produced graph is re-validated independently
// before it is returned; any structural violation blocks publication.
func Compile(in *Input) (*Definition, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validating input: %w", err)
	}

	ordered := make([]*Checkpoint, len(in.Checkpoints))
	for i := range in.Checkpoints {
		ordered[i] = &in.Checkpoints[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].Id < ordered[j].Id
	})

	startId := ordered[0].Id
	for _, c := range ordered {
		if c.IsStart {
			startId = c.Id
			break
		}
	}
	endId := ordered[len(ordered)-1].Id

	def := &Definition{
		QuestId:       in.QuestId,
		QuestVersion:  in.QuestVersion,
		SchemaVersion: in.SchemaVersion,
		PublishedAt:   in.PublishedAt,
		Objects:       make(map[string]*ObjectDef, len(ordered)),
		Nodes:         make(map[string]*NodeDef),
		StartObjectId: startId,
		EndObjectId:   endId,
		Policies: Policies{
			VisibilityWindowSize: in.WindowSize,
			DefaultBlocking:      in.DefaultBlocking,
			IncludeCompleted:     !in.HideCompleted,
		},
	}

	for i, c := range ordered {
		out := c.Next
		if len(out) == 0 && i+1 < len(ordered) {
			out = []string{ordered[i+1].Id}
		}
		if err := compileObject(def, c, out, in.DefaultBlocking); err != nil {
			return nil, fmt.Errorf("checkpoint %q: %w", c.Id, err)
		}
	}

	if violations := Validate(def); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	return def, nil
}

// compileObject synthesizes the object's boundary state nodes and chains
// its enabled timeline steps between them.
func compileObject(def *Definition, c *Checkpoint, out []string, defaultBlocking bool) error {
	startNode := &NodeDef{
		Id:       NodeId(c.Id, "start"),
		ObjectId: c.Id,
		Kind:     NodeKindState,
		Role:     StateRoleStart,
	}
	endNode := &NodeDef{
		Id:       NodeId(c.Id, "end"),
		ObjectId: c.Id,
		Kind:     NodeKindState,
		Role:     StateRoleEnd,
	}

	def.Objects[c.Id] = &ObjectDef{
		Id:           c.Id,
		Title:        c.Title,
		EntryNodeId:  startNode.Id,
		OutObjectIds: out,
		Gate:         c.Gate,
	}
	def.Nodes[startNode.Id] = startNode
	def.Nodes[endNode.Id] = endNode

	prev := startNode
	for i := range c.Timeline {
		step := &c.Timeline[i]
		if step.Disabled {
			continue
		}
		node, err := compileStep(c.Id, i, step, defaultBlocking)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		def.Nodes[node.Id] = node
		link(prev, node.Id)
		prev = node
	}
	link(prev, endNode.Id)

	return nil
}

// compileStep turns one authored step into a compiled node. Unsupported or
// ambiguous step shapes fail compilation rather than being dropped.
func compileStep(objectId string, index int, step *Step, defaultBlocking bool) (*NodeDef, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}

	kind, ok := step.Kind.nodeKind()
	if !ok {
		return nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}

	blocking := defaultBlocking
	if step.Blocking != nil {
		blocking = *step.Blocking
	}

	node := &NodeDef{
		Id:       NodeId(objectId, fmt.Sprintf("step-%d-%s", index, kind)),
		ObjectId: objectId,
		Kind:     kind,
		Blocking: blocking,
		Gate:     step.Gate,
		Content:  step.Content,
		MediaURL: step.MediaURL,
		PuzzleId: step.PuzzleId,
		ActionId: step.ActionId,
		Effect:   step.Effect,
	}

	if node.Content != "" {
		if err := CheckNarrative(node.Content); err != nil {
			return nil, fmt.Errorf("content template: %w", err)
		}
	}

	return node, nil
}

// link appends the successor to the node's forward edge list. Branching
// nodes continue the chain through their success edge; their failure edge
// is left empty so a failed attempt stays on the node for retry.
func link(from *NodeDef, to string) {
	if from.Kind.Branching() {
		from.OnSuccess = append(from.OnSuccess, to)
		return
	}
	from.Next = append(from.Next, to)
}

// NodeId derives a deterministic node id from an object id and suffix.
// Raw ids that would overflow the id-length budget are truncated and
// given a short content hash so distinct inputs cannot collide.
func NodeId(objectId, suffix string) string {
	raw := objectId + "-" + suffix
	if len(raw) <= idMaxLen {
		return raw
	}
	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:4])
	return strings.TrimRight(raw[:idMaxLen-len(hash)-1], "-") + "-" + hash
}
