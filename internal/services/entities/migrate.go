package entities

import (
	"encoding/json"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
)

// migrateRecord upgrades one raw persisted record to the current schema.
// It is pure: no I/O, no clock. Returns ok=false for records missing
// required fields (those are dropped, not surfaced) and changed=true when
// anything was backfilled or rewritten, so the caller can write the
// corrected set back exactly once per load.
func migrateRecord(raw json.RawMessage, kind model.Kind) (e *model.Entity, changed, ok bool) {
	var rec model.Entity
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, false
	}
	if rec.ID == "" || rec.Text == "" {
		return nil, false, false
	}

	if rec.Kind != kind {
		rec.Kind = kind
		changed = true
	}

	// Legacy single trigger id becomes a one-element collection.
	if rec.LegacyTriggerID != "" {
		if len(rec.TriggerIDs) == 0 {
			rec.TriggerIDs = []string{rec.LegacyTriggerID}
		}
		rec.LegacyTriggerID = ""
		changed = true
	}
	if rec.TriggerIDs == nil {
		rec.TriggerIDs = []string{}
		changed = true
	}

	// Older records stored an unordered, possibly duplicated day list.
	nd := model.NormalizeDays(rec.Days)
	if !equalDays(nd, rec.Days) {
		rec.Days = nd
		changed = true
	}

	// A day set implies a recurring schedule; backfill the mode flag that
	// predates it.
	if len(rec.Days) > 0 && !rec.Recurring {
		rec.Recurring = true
		changed = true
	}

	return &rec, changed, true
}

func equalDays(a, b []model.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// decodeDocument parses a persisted entity-array document and migrates
// every record. Malformed records are dropped silently; a document that is
// not valid JSON at all yields an empty set without marking a change, so a
// corrupt document is never overwritten with nothing.
func decodeDocument(doc []byte, kind model.Kind) (out []*model.Entity, changed bool) {
	if len(doc) == 0 {
		return nil, false
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(doc, &raws); err != nil {
		return nil, false
	}
	out = make([]*model.Entity, 0, len(raws))
	for _, raw := range raws {
		e, recChanged, ok := migrateRecord(raw, kind)
		if !ok {
			changed = true
			continue
		}
		if recChanged {
			changed = true
		}
		out = append(out, e)
	}
	return out, changed
}
