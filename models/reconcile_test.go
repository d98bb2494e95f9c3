package models

import "testing"

func localEntry(id string, action ActionType, actionId int) DraftEntry {
	return DraftEntry{Id: id, Time: 1000, ActionType: action, ActionRecordId: actionId, Origin: DraftOriginLocal}
}

func syncEntry(id string, action ActionType) DraftEntry {
	return DraftEntry{Id: id, Time: 1000, ActionType: action, Origin: DraftOriginSync}
}

func countByType(entries []DraftEntry, action ActionType) int {
	n := 0
	for _, entry := range entries {
		if entry.ActionType == action {
			n++
		}
	}
	return n
}

func TestReconcileFillsGapsWithSyntheticEntries(t *testing.T) {
	entries := []DraftEntry{
		localEntry("R-1", ActionTypePass, 11),
	}
	summary := []ActionSummary{
		{Action: ActionTypePass, Count: 3},
		{Action: ActionTypeDisposeExpired, Count: 1},
	}

	result := ReconcileDrafts(entries, summary, map[int]bool{11: true})
	if result.Added != 3 {
		t.Fatalf("expected 3 synthetic entries, got %d", result.Added)
	}
	if result.Removed != 0 {
		t.Fatalf("expected no removals, got %d", result.Removed)
	}
	if len(result.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(result.Entries))
	}

	// Synthetic block is prepended; the local entry keeps its position at
	// the tail.
	if result.Entries[len(result.Entries)-1].Id != "R-1" {
		t.Fatalf("local entry displaced: %+v", result.Entries)
	}
	for _, entry := range result.Entries[:3] {
		if entry.Origin != DraftOriginSync {
			t.Fatalf("prepended entry not sync-origin: %+v", entry)
		}
		if entry.ItemId != "" || entry.ActionRecordId != 0 {
			t.Fatalf("synthetic entry carries linkage: %+v", entry)
		}
		if entry.Id[:2] != "S-" {
			t.Fatalf("synthetic entry id %q lacks sync prefix", entry.Id)
		}
	}
	if countByType(result.Entries, ActionTypePass) != 3 {
		t.Fatalf("pass count mismatch after fill")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	summary := []ActionSummary{
		{Action: ActionTypePass, Count: 2},
		{Action: ActionTypeWarnStoragePoor, Count: 1},
	}
	first := ReconcileDrafts(nil, summary, nil)
	if first.Added != 3 {
		t.Fatalf("expected 3 added on empty list, got %d", first.Added)
	}

	second := ReconcileDrafts(first.Entries, summary, nil)
	if second.Changed() {
		t.Fatalf("second pass changed the list: added %d removed %d", second.Added, second.Removed)
	}
	if len(second.Entries) != len(first.Entries) {
		t.Fatalf("entry count drifted: %d -> %d", len(first.Entries), len(second.Entries))
	}
}

func TestReconcileMatchingCountsIsNoOp(t *testing.T) {
	entries := []DraftEntry{
		localEntry("R-1", ActionTypePass, 11),
		localEntry("R-2", ActionTypeDisposeExpired, 12),
	}
	summary := []ActionSummary{
		{Action: ActionTypePass, Count: 1},
		{Action: ActionTypeDisposeExpired, Count: 1},
	}
	result := ReconcileDrafts(entries, summary, map[int]bool{11: true, 12: true})
	if result.Changed() {
		t.Fatalf("no-op pass reported changes: %+v", result)
	}
}

func TestReconcileDecreaseRemovesSyncEntriesFirst(t *testing.T) {
	entries := []DraftEntry{
		syncEntry("S-1", ActionTypePass),
		localEntry("R-1", ActionTypePass, 11),
		localEntry("R-2", ActionTypePass, 12),
	}
	summary := []ActionSummary{{Action: ActionTypePass, Count: 2}}

	result := ReconcileDrafts(entries, summary, map[int]bool{11: true, 12: true})
	if result.Removed != 1 {
		t.Fatalf("expected 1 removal, got %d", result.Removed)
	}
	for _, entry := range result.Entries {
		if entry.Id == "S-1" {
			t.Fatal("sync entry survived while locals were available for removal")
		}
	}
}

func TestReconcileDecreasePrefersUnconfirmedLocals(t *testing.T) {
	// No sync entries. R-2 was never confirmed (ActionRecordId 0) and must
	// go before either confirmed local.
	entries := []DraftEntry{
		localEntry("R-1", ActionTypePass, 11),
		localEntry("R-2", ActionTypePass, 0),
		localEntry("R-3", ActionTypePass, 12),
	}
	summary := []ActionSummary{{Action: ActionTypePass, Count: 2}}

	result := ReconcileDrafts(entries, summary, map[int]bool{11: true, 12: true})
	if result.Removed != 1 {
		t.Fatalf("expected 1 removal, got %d", result.Removed)
	}
	if len(result.Entries) != 2 || result.Entries[0].Id != "R-1" || result.Entries[1].Id != "R-3" {
		t.Fatalf("wrong survivor set: %+v", result.Entries)
	}
}

func TestReconcileDecreaseRemovesOrphanedConfirmations(t *testing.T) {
	// R-2's action id 99 no longer appears among confirmed actions: an admin
	// correction removed it server-side.
	entries := []DraftEntry{
		localEntry("R-1", ActionTypePass, 11),
		localEntry("R-2", ActionTypePass, 99),
	}
	summary := []ActionSummary{{Action: ActionTypePass, Count: 1}}

	result := ReconcileDrafts(entries, summary, map[int]bool{11: true})
	if result.Removed != 1 {
		t.Fatalf("expected 1 removal, got %d", result.Removed)
	}
	if len(result.Entries) != 1 || result.Entries[0].Id != "R-1" {
		t.Fatalf("confirmed-present entry was removed: %+v", result.Entries)
	}
}

func TestReconcileNeverRemovesConfirmedPresentEntries(t *testing.T) {
	// Every local entry is confirmed and present. Even with a lower summary
	// count there is nothing safe to remove.
	entries := []DraftEntry{
		localEntry("R-1", ActionTypePass, 11),
		localEntry("R-2", ActionTypePass, 12),
	}
	summary := []ActionSummary{{Action: ActionTypePass, Count: 1}}

	result := ReconcileDrafts(entries, summary, map[int]bool{11: true, 12: true})
	if result.Removed != 0 {
		t.Fatalf("removed a confirmed-present entry: %+v", result)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entry lost: %+v", result.Entries)
	}
}

func TestReconcileDecreaseWhenSummaryOmitsZeroCountRow(t *testing.T) {
	// The backend drops zero-count types from the summary instead of sending
	// an explicit 0. A surplus entry of an absent type must still be removed.
	entries := []DraftEntry{
		syncEntry("S-1", ActionTypePass),
	}
	summary := []ActionSummary{
		{Action: ActionTypeWarnInfoMismatch, Count: 0},
	}

	result := ReconcileDrafts(entries, summary, nil)
	if result.Removed != 1 {
		t.Fatalf("expected 1 removal, got %+v", result)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("surplus entry survived an absent summary row: %+v", result.Entries)
	}
}

func TestReconcileEmptySummaryClearsUnconfirmedEntries(t *testing.T) {
	// Every action was deleted server-side. Sync and unconfirmed entries go;
	// a confirmed-present local entry stays.
	entries := []DraftEntry{
		syncEntry("S-1", ActionTypePass),
		localEntry("R-1", ActionTypeDisposeExpired, 0),
		localEntry("R-2", ActionTypeWarnStoragePoor, 11),
	}

	result := ReconcileDrafts(entries, nil, map[int]bool{11: true})
	if result.Removed != 2 {
		t.Fatalf("expected 2 removals, got %+v", result)
	}
	if len(result.Entries) != 1 || result.Entries[0].Id != "R-2" {
		t.Fatalf("wrong survivor set: %+v", result.Entries)
	}
}

func TestReconcileMixedIncreaseAndDecrease(t *testing.T) {
	entries := []DraftEntry{
		syncEntry("S-1", ActionTypeWarnInfoMismatch),
		localEntry("R-1", ActionTypePass, 11),
	}
	summary := []ActionSummary{
		{Action: ActionTypePass, Count: 2},
		{Action: ActionTypeWarnInfoMismatch, Count: 0},
	}

	result := ReconcileDrafts(entries, summary, map[int]bool{11: true})
	if result.Added != 1 || result.Removed != 1 {
		t.Fatalf("expected added=1 removed=1, got %+v", result)
	}
	if countByType(result.Entries, ActionTypePass) != 2 {
		t.Fatalf("pass gap not filled: %+v", result.Entries)
	}
	if countByType(result.Entries, ActionTypeWarnInfoMismatch) != 0 {
		t.Fatalf("surplus warn entry survived: %+v", result.Entries)
	}
}
