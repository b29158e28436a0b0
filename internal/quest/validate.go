package quest

import (
	"fmt"
	"sort"
	"strings"
)

// Violation is one structural defect found in a compiled definition.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Message
}

// ValidationError aggregates every violation found in one pass so authors
// can fix everything at once.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("definition has %d violation(s): %s",
		len(e.Violations), strings.Join(msgs, "; "))
}

// Validate re-walks a compiled definition independently of the compiler
// and reports every structural violation. An empty result means the
// definition is safe to publish.
func Validate(def *Definition) []Violation {
	w := &walker{}

	if def.QuestId == "" {
		w.add("quest_id", "is required")
	}
	if def.QuestVersion == "" {
		w.add("quest_version", "is required")
	}
	if def.Policies.VisibilityWindowSize < 1 {
		w.add("policies.visibility_window_size", "must be at least 1")
	}

	if def.StartObjectId == "" {
		w.add("start_object_id", "is required")
	} else if def.Objects[def.StartObjectId] == nil {
		w.add("start_object_id", fmt.Sprintf("references unknown object %q", def.StartObjectId))
	}
	if def.EndObjectId == "" {
		w.add("end_object_id", "is required")
	} else if def.Objects[def.EndObjectId] == nil {
		w.add("end_object_id", fmt.Sprintf("references unknown object %q", def.EndObjectId))
	}

	for _, id := range sortedKeys(def.Objects) {
		w.checkObject(def, def.Objects[id])
	}
	for _, id := range sortedKeys(def.Nodes) {
		w.checkNode(def, def.Nodes[id])
	}

	return w.violations
}

type walker struct {
	violations []Violation
}

func (w *walker) add(path, message string) {
	w.violations = append(w.violations, Violation{Path: path, Message: message})
}

func (w *walker) checkObject(def *Definition, obj *ObjectDef) {
	path := "objects." + obj.Id

	if obj.Id == "" {
		w.add(path, "id is required")
	} else if !identifierPattern.MatchString(obj.Id) {
		w.add(path+".id", fmt.Sprintf("%q must contain only letters, digits, hyphens, and underscores", obj.Id))
	}
	if obj.Title == "" {
		w.add(path+".title", "is required")
	}

	// Exactly one start and one end state node must belong to the object,
	// and entry_node_id must be the object's own start node.
	var starts, ends []string
	for _, id := range sortedKeys(def.Nodes) {
		n := def.Nodes[id]
		if n.ObjectId != obj.Id || n.Kind != NodeKindState {
			continue
		}
		switch n.Role {
		case StateRoleStart:
			starts = append(starts, n.Id)
		case StateRoleEnd:
			ends = append(ends, n.Id)
		}
	}
	if len(starts) != 1 {
		w.add(path, fmt.Sprintf("must have exactly one start state node, found %d", len(starts)))
	}
	if len(ends) != 1 {
		w.add(path, fmt.Sprintf("must have exactly one end state node, found %d", len(ends)))
	}

	entry := def.Nodes[obj.EntryNodeId]
	switch {
	case obj.EntryNodeId == "":
		w.add(path+".entry_node_id", "is required")
	case entry == nil:
		w.add(path+".entry_node_id", fmt.Sprintf("references unknown node %q", obj.EntryNodeId))
	case entry.ObjectId != obj.Id || entry.Kind != NodeKindState || entry.Role != StateRoleStart:
		w.add(path+".entry_node_id", fmt.Sprintf("%q is not the object's own start state node", obj.EntryNodeId))
	}

	for i, out := range obj.OutObjectIds {
		if def.Objects[out] == nil {
			w.add(fmt.Sprintf("%s.out_object_ids[%d]", path, i),
				fmt.Sprintf("references unknown object %q", out))
		}
	}
}

func (w *walker) checkNode(def *Definition, n *NodeDef) {
	path := "nodes." + n.Id

	if n.Id == "" {
		w.add(path, "id is required")
	} else if !identifierPattern.MatchString(n.Id) {
		w.add(path+".id", fmt.Sprintf("%q must contain only letters, digits, hyphens, and underscores", n.Id))
	}
	if !n.Kind.Known() {
		w.add(path+".kind", fmt.Sprintf("unknown kind %q", n.Kind))
	}
	if def.Objects[n.ObjectId] == nil {
		w.add(path+".object_id", fmt.Sprintf("references unknown object %q", n.ObjectId))
	}

	w.checkEdges(def, path+".next", n.Next)
	w.checkEdges(def, path+".on_success", n.OnSuccess)
	w.checkEdges(def, path+".on_failure", n.OnFailure)

	if n.Kind.Branching() {
		if len(n.OnSuccess) == 0 {
			w.add(path+".on_success", "branching node must have at least one success successor")
		}
		if len(n.Next) > 0 {
			w.add(path+".next", "branching node must not have linear successors")
		}
	} else {
		if len(n.OnSuccess) > 0 || len(n.OnFailure) > 0 {
			w.add(path, "linear node must not have success/failure successors")
		}
	}

	if n.Kind == NodeKindState && n.Role == StateRoleEnd {
		if len(n.Next)+len(n.OnSuccess)+len(n.OnFailure) > 0 {
			w.add(path, "end state node must have no outgoing edges")
		}
	}
}

func (w *walker) checkEdges(def *Definition, path string, edges []string) {
	for i, to := range edges {
		if def.Nodes[to] == nil {
			w.add(fmt.Sprintf("%s[%d]", path, i), fmt.Sprintf("references unknown node %q", to))
		}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
