package entities

import (
	"encoding/json"
	"testing"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
)

func TestMigrateRecord(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		raw         string
		wantOK      bool
		wantChanged bool
		check       func(t *testing.T, e *model.Entity)
	}{
		{
			name:        "current schema passes through",
			raw:         `{"id":"a","kind":"reminder","text":"gym","trigger_ids":[],"enabled":true,"created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: false,
		},
		{
			name:   "missing id dropped",
			raw:    `{"text":"orphan","trigger_ids":[]}`,
			wantOK: false,
		},
		{
			name:   "missing text dropped",
			raw:    `{"id":"a","trigger_ids":[]}`,
			wantOK: false,
		},
		{
			name:   "unparseable dropped",
			raw:    `{"id":"a","text":"x","time":"25:99","trigger_ids":[]}`,
			wantOK: false,
		},
		{
			name:        "legacy trigger id folded",
			raw:         `{"id":"a","kind":"reminder","text":"gym","notification_id":"legacy-7","created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T, e *model.Entity) {
				if len(e.TriggerIDs) != 1 || e.TriggerIDs[0] != "legacy-7" {
					t.Fatalf("TriggerIDs = %v, want [legacy-7]", e.TriggerIDs)
				}
				if e.LegacyTriggerID != "" {
					t.Fatal("legacy id must be cleared after folding")
				}
			},
		},
		{
			name:        "legacy id ignored when collection present",
			raw:         `{"id":"a","kind":"reminder","text":"gym","notification_id":"legacy-7","trigger_ids":["t1"],"created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T, e *model.Entity) {
				if len(e.TriggerIDs) != 1 || e.TriggerIDs[0] != "t1" {
					t.Fatalf("TriggerIDs = %v, want [t1]", e.TriggerIDs)
				}
			},
		},
		{
			name:        "nil trigger ids backfilled",
			raw:         `{"id":"a","kind":"reminder","text":"gym","created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T, e *model.Entity) {
				if e.TriggerIDs == nil || len(e.TriggerIDs) != 0 {
					t.Fatalf("TriggerIDs = %v, want empty non-nil", e.TriggerIDs)
				}
			},
		},
		{
			name:        "days normalized and recurring backfilled",
			raw:         `{"id":"a","kind":"reminder","text":"gym","days":["friday","monday","friday"],"trigger_ids":[],"created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T, e *model.Entity) {
				if len(e.Days) != 2 || e.Days[0] != model.Monday || e.Days[1] != model.Friday {
					t.Fatalf("Days = %v, want [monday friday]", e.Days)
				}
				if !e.Recurring {
					t.Fatal("day set must imply recurring")
				}
			},
		},
		{
			name:        "legacy ordinal days accepted",
			raw:         `{"id":"a","kind":"reminder","text":"gym","days":[5,1],"recurring":true,"trigger_ids":[],"created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T, e *model.Entity) {
				if len(e.Days) != 2 || e.Days[0] != model.Monday || e.Days[1] != model.Friday {
					t.Fatalf("Days = %v, want [monday friday]", e.Days)
				}
			},
		},
		{
			name:        "wrong kind corrected",
			raw:         `{"id":"a","kind":"alarm","text":"gym","trigger_ids":[],"created_at":"2025-06-12T10:00:00Z"}`,
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T, e *model.Entity) {
				if e.Kind != model.KindReminder {
					t.Fatalf("Kind = %q, want reminder", e.Kind)
				}
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e, changed, ok := migrateRecord(json.RawMessage(tt.raw), model.KindReminder)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if changed != tt.wantChanged {
				t.Fatalf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

func TestDecodeDocument(t *testing.T) {
	t.Parallel()

	// A corrupt document yields nothing and, crucially, no change flag, so
	// the caller never overwrites it.
	out, changed := decodeDocument([]byte(`{"not":"an array"`), model.KindAlarm)
	if out != nil || changed {
		t.Fatalf("corrupt doc: out=%v changed=%v, want nil/false", out, changed)
	}

	// Dropped records mark the document changed so the healed set is saved.
	doc := `[{"id":"a","kind":"alarm","text":"wake","trigger_ids":[],"created_at":"2025-06-12T10:00:00Z"},{"text":"no id"}]`
	out, changed = decodeDocument([]byte(doc), model.KindAlarm)
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("out = %v, want single record a", out)
	}
	if !changed {
		t.Fatal("dropping a record must mark the document changed")
	}
}
