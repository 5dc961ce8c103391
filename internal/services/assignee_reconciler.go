package services

import "github.com/google/uuid"

// AssigneePlan is the delta between a task's current and requested
// assignee sets.
type AssigneePlan struct {
	// Apply is false when the request did not mention assignees at all.
	Apply   bool
	Added   []string
	Removed []string
	// Final is the resulting set in insertion order.
	Final []string
}

// ReconcileAssignees computes the assignee delta. A nil requested leaves the
// set untouched; an empty slice clears it. Malformed ids and duplicates are
// dropped silently before diffing.
func ReconcileAssignees(current []string, requested *[]string) AssigneePlan {
	if requested == nil {
		return AssigneePlan{Final: append([]string{}, current...)}
	}

	final := SanitizeUserIDs(*requested)
	want := make(map[string]struct{}, len(final))
	for _, id := range final {
		want[id] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}

	plan := AssigneePlan{Apply: true, Final: final, Added: []string{}, Removed: []string{}}
	for _, id := range final {
		if _, ok := have[id]; !ok {
			plan.Added = append(plan.Added, id)
		}
	}
	for _, id := range current {
		if _, ok := want[id]; !ok {
			plan.Removed = append(plan.Removed, id)
		}
	}
	return plan
}

// RequestedAssignees merges the plural and the deprecated single-assignee
// inputs. The plural field wins when both are present.
func RequestedAssignees(plural *[]string, single *string) *[]string {
	if plural != nil {
		return plural
	}
	if single == nil {
		return nil
	}
	if *single == "" {
		empty := []string{}
		return &empty
	}
	one := []string{*single}
	return &one
}

// SanitizeUserIDs keeps well-formed UUIDs in first-seen order, without
// duplicates. Ids are normalized to their canonical lower-case form.
func SanitizeUserIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		s := id.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
