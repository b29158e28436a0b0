package engine

import (
	"sort"

	"github.com/pixil98/go-quest/internal/quest"
)

// evaluateGate recomputes an all_players_success gate across the eligible
// player set and reports whether the condition holds. The eligible set is
// the session's active players, optionally restricted to the gate's
// explicit player subset.
//
// all_players_success is the only gate type with full multiplayer
// evaluation; any_player_done, min_count_done, and future gate types
// resolve per player in resolveSuccess. Declared scopes are likewise
// not narrowed: player and object scopes evaluate over the same
// session-wide active player set. Both fallbacks are deliberate
// extension points, not missing logic.
func (r *reducer) evaluateGate(node *quest.NodeDef) ([]string, bool) {
	gate := node.Gate

	var subset map[string]bool
	if len(gate.Players) > 0 {
		subset = make(map[string]bool, len(gate.Players))
		for _, pid := range gate.Players {
			subset[pid] = true
		}
	}

	var eligible []string
	for pid, p := range r.state.Players {
		if p.Status != PlayerActive {
			continue
		}
		if subset != nil && !subset[pid] {
			continue
		}
		eligible = append(eligible, pid)
	}
	sort.Strings(eligible)

	if len(eligible) == 0 {
		return nil, false
	}

	attemptGroup := ""
	for _, pid := range eligible {
		ns := r.state.PeekNodeState(pid, node.Id)
		if ns == nil || ns.Status != NodeCompleted || !ns.Outcome.Succeeded() {
			return eligible, false
		}
		if !gate.RequireSameAttempt {
			continue
		}
		if ns.AttemptGroupId == "" {
			return eligible, false
		}
		if attemptGroup == "" {
			attemptGroup = ns.AttemptGroupId
		} else if ns.AttemptGroupId != attemptGroup {
			return eligible, false
		}
	}

	return eligible, true
}
