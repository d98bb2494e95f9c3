package models

import "time"

// ReconcileResult reports one reconciliation pass.
type ReconcileResult struct {
	Entries []DraftEntry
	Added   int
	Removed int
}

// Changed reports whether the pass touched the list.
func (r ReconcileResult) Changed() bool {
	return r.Added > 0 || r.Removed > 0
}

// ReconcileDrafts aligns the local draft list with the authoritative
// per-action-type summary. For every type where the authoritative count
// exceeds the local count, the gap is filled by prepending synthetic entries
// (origin=sync, no item linkage). The pass is idempotent: with an unchanged
// summary it is a no-op.
//
// A summary count below the local count (an administrative correction
// deleted a confirmed action) removes surplus entries of that type,
// newest-first, in preference order: sync-origin entries, then local entries
// with no confirmed action id, then local entries whose action id no longer
// appears among the session's confirmed actions. A confirmed, still-present
// local entry is never removed.
func ReconcileDrafts(entries []DraftEntry, summary []ActionSummary, confirmed map[int]bool) ReconcileResult {
	counts := make(map[ActionType]int, len(AllActionTypes()))
	for _, entry := range entries {
		counts[entry.ActionType]++
	}
	authoritative := make(map[ActionType]int, len(summary))
	for _, row := range summary {
		authoritative[row.Action] = row.Count
	}

	result := ReconcileResult{Entries: entries}

	// Walk every known type, not just the summary rows: the backend omits
	// zero-count types, and a count that dropped to zero still has to clear
	// the matching local entries.
	var synthetic []DraftEntry
	for _, action := range AllActionTypes() {
		diff := authoritative[action] - counts[action]
		switch {
		case diff > 0:
			now := time.Now().UnixMilli()
			for i := 0; i < diff; i++ {
				synthetic = append(synthetic, DraftEntry{
					Id:         NewSyncEntryId(),
					Time:       now,
					ActionType: action,
					Origin:     DraftOriginSync,
				})
			}
			result.Added += diff
		case diff < 0:
			trimmed, removed := dropSurplus(result.Entries, action, -diff, confirmed)
			result.Entries = trimmed
			result.Removed += removed
		}
	}

	if len(synthetic) > 0 {
		result.Entries = append(synthetic, result.Entries...)
	}
	return result
}

// dropSurplus removes up to n entries of the given type. The list is ordered
// newest-first, so a plain scan removes newest entries within each
// preference class.
func dropSurplus(entries []DraftEntry, action ActionType, n int, confirmed map[int]bool) ([]DraftEntry, int) {
	removable := func(entry DraftEntry, class int) bool {
		if entry.ActionType != action {
			return false
		}
		switch class {
		case 0:
			return entry.Origin == DraftOriginSync
		case 1:
			return entry.Origin != DraftOriginSync && entry.ActionRecordId == 0
		default:
			return entry.Origin != DraftOriginSync && entry.ActionRecordId != 0 && !confirmed[entry.ActionRecordId]
		}
	}

	drop := make(map[string]bool, n)
	for class := 0; class <= 2 && len(drop) < n; class++ {
		for _, entry := range entries {
			if len(drop) >= n {
				break
			}
			if !drop[entry.Id] && removable(entry, class) {
				drop[entry.Id] = true
			}
		}
	}

	if len(drop) == 0 {
		return entries, 0
	}
	kept := make([]DraftEntry, 0, len(entries)-len(drop))
	for _, entry := range entries {
		if !drop[entry.Id] {
			kept = append(kept, entry)
		}
	}
	return kept, len(drop)
}
