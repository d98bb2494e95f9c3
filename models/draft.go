package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dormstack/dormops_client/utils"
)

// DraftEntry is one client-visible log row of the inspection draft. It is
// richer than the terse server summary: it carries the display fields the
// result list renders (item name, bundle label, expiry, penalty count).
type DraftEntry struct {
	Id             string      `json:"id"`
	Time           int64       `json:"time"` // epoch ms
	ActionType     ActionType  `json:"action"`
	ActionRecordId int         `json:"actionRecordId,omitempty"`
	ItemId         string      `json:"itemId,omitempty"`
	BundleId       string      `json:"bundleId,omitempty"`
	BundleName     string      `json:"bundleName,omitempty"`
	BundleLabel    string      `json:"bundleLabel,omitempty"`
	Name           string      `json:"name,omitempty"`
	ExpiryDate     string      `json:"expiryDate,omitempty"`
	Note           string      `json:"note,omitempty"`
	CorrelationId  string      `json:"correlationId,omitempty"`
	PenaltyCount   int         `json:"penaltyCount,omitempty"`
	RecordedAt     string      `json:"recordedAt,omitempty"`
	Origin         DraftOrigin `json:"origin,omitempty"`
}

// Revertible reports whether the entry can be undone against the server.
func (e DraftEntry) Revertible() bool {
	return e.ActionRecordId != 0
}

// NewDraftEntryId generates a client-side id for a locally recorded entry.
func NewDraftEntryId() string {
	return "R-" + uuid.NewString()
}

// NewSyncEntryId generates an id for an entry synthesized by reconciliation.
func NewSyncEntryId() string {
	return "S-" + uuid.NewString()
}

// draftEntryWire tolerates the shapes older client builds persisted: `time`
// as an RFC3339 string, expiry under `expiry`, missing origin.
type draftEntryWire struct {
	Id             string          `json:"id"`
	Time           json.RawMessage `json:"time"`
	ActionType     ActionType      `json:"action"`
	ActionRecordId int             `json:"actionRecordId"`
	ItemId         string          `json:"itemId"`
	BundleId       string          `json:"bundleId"`
	BundleName     string          `json:"bundleName"`
	BundleLabel    string          `json:"bundleLabel"`
	Name           string          `json:"name"`
	ExpiryDate     string          `json:"expiryDate"`
	Expiry         string          `json:"expiry"`
	Note           string          `json:"note"`
	CorrelationId  string          `json:"correlationId"`
	PenaltyCount   int             `json:"penaltyCount"`
	RecordedAt     string          `json:"recordedAt"`
	Origin         string          `json:"origin"`
}

type draftCollectionWire struct {
	Entries []json.RawMessage `json:"entries"`
}

// DecodeDraftEntries parses a persisted draft collection. It accepts either a
// bare entry array or an {entries: [...]} wrapper, normalizes legacy fields,
// and drops individual rows that cannot be decoded. A payload that is not
// parseable at all returns an error; callers treat that as purgeable.
func DecodeDraftEntries(raw []byte) ([]DraftEntry, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		var wrapper draftCollectionWire
		if err2 := utils.UnmarshalFromJSON(raw, &wrapper); err2 != nil || wrapper.Entries == nil {
			return nil, err
		}
		rows = wrapper.Entries
	}

	entries := make([]DraftEntry, 0, len(rows))
	for _, row := range rows {
		var wire draftEntryWire
		if err := json.Unmarshal(row, &wire); err != nil {
			continue
		}
		entries = append(entries, wire.normalize())
	}
	return entries, nil
}

func (w draftEntryWire) normalize() DraftEntry {
	entry := DraftEntry{
		Id:             w.Id,
		Time:           normalizeEpochMs(w.Time),
		ActionType:     w.ActionType,
		ActionRecordId: w.ActionRecordId,
		ItemId:         w.ItemId,
		BundleId:       w.BundleId,
		BundleName:     w.BundleName,
		BundleLabel:    w.BundleLabel,
		Name:           w.Name,
		ExpiryDate:     w.ExpiryDate,
		Note:           w.Note,
		CorrelationId:  w.CorrelationId,
		PenaltyCount:   w.PenaltyCount,
		RecordedAt:     w.RecordedAt,
		Origin:         DraftOriginLocal,
	}
	if entry.ExpiryDate == "" {
		entry.ExpiryDate = w.Expiry
	}
	if w.Origin == string(DraftOriginSync) {
		entry.Origin = DraftOriginSync
	}
	if entry.Id == "" {
		entry.Id = NewDraftEntryId()
	}
	return entry
}

func normalizeEpochMs(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return time.Now().UnixMilli()
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return ms
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if t, perr := time.Parse(time.RFC3339, str); perr == nil {
			return t.UnixMilli()
		}
	}
	return time.Now().UnixMilli()
}

// LatestEntryTime returns the maximum entry timestamp, or false when the
// collection holds no timestamped rows.
func LatestEntryTime(entries []DraftEntry) (int64, bool) {
	var latest int64
	found := false
	for _, entry := range entries {
		if entry.Time > latest {
			latest = entry.Time
			found = true
		}
	}
	return latest, found
}
