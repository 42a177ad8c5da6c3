// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package triage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/format"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/memstore"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/rules"
)

const store = "EMAIL_MATCHED"

var fixedNow = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func record(from, subject string, namespaces ...string) models.StoredRecord {
	return models.NewStoredRecord(models.Message{
		From:      from,
		Subject:   subject,
		Date:      time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC),
		MessageID: subject,
	}, namespaces, fixedNow)
}

func TestDetermine_Levels(t *testing.T) {
	tests := []struct {
		name   string
		rec    models.StoredRecord
		level  models.TriageLevel
		action string
	}{
		{
			name:  "out of office",
			rec:   record("clerk@court.example", "Out of Office: back Monday", rules.CategorySupremeCourt),
			level: models.LevelNoAction,
		},
		{
			name:  "noreply sender",
			rec:   record("NoReply@service.example", "Your receipt", "EMAIL_EXPENSES_REPAIRS"),
			level: models.LevelNoAction,
		},
		{
			name:   "reconsideration",
			rec:    record("clerk@court.example", "CPR 52.30 application", "EMAIL_COURTS_COURT_OF_APPEALS_CIVIL_DIVISION_X", rules.CategoryReconsiderationCPR530),
			level:  models.LevelComplex,
			action: ActionReconsideration,
		},
		{
			name:   "supreme court",
			rec:    record("admin@supremecourt.uk", "Appeal hearing scheduled", rules.CategorySupremeCourt),
			level:  models.LevelComplex,
			action: ActionCourtFiling,
		},
		{
			name:   "first complex category wins",
			rec:    record("x@y.z", "hearing", rules.CategoryCourtOfAppealCivil, rules.CategoryReconsiderationPD52B),
			level:  models.LevelComplex,
			action: ActionCourtFiling,
		},
		{
			name:   "standard",
			rec:    record("landlord@example.com", "Repairs quote", "EMAIL_EXPENSES_REPAIRS"),
			level:  models.LevelSimple,
			action: ActionAcknowledge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Determine("k", tt.rec)
			if d.Level != tt.level {
				t.Errorf("Level = %s, want %s (%s)", d.Level, tt.level, d.Reason)
			}
			if d.SuggestedAction != tt.action {
				t.Errorf("SuggestedAction = %q, want %q", d.SuggestedAction, tt.action)
			}
			if d.Reason == "" {
				t.Error("Reason is empty")
			}
			if d.Key != "k" || d.Category != tt.rec.Namespaces[0] {
				t.Errorf("decision = %+v", d)
			}
		})
	}
}

func TestDetermine_Deterministic(t *testing.T) {
	rec := record("a@b.c", "Court of appeal listing", rules.CategoryCourtOfAppealCivil)
	if !reflect.DeepEqual(Determine("k", rec), Determine("k", rec)) {
		t.Error("Determine is not deterministic")
	}
}

func TestCountByLevel(t *testing.T) {
	ds := []Decision{
		{Level: models.LevelNoAction},
		{Level: "NOTED"},
		{Level: models.LevelSimple},
		{Level: models.LevelComplex},
	}
	got := CountByLevel(ds)
	want := LevelCounts{Total: 4, NoAction: 2, Simple: 1, Complex: 1}
	if got != want {
		t.Errorf("CountByLevel = %+v, want %+v", got, want)
	}
}

func setup(t *testing.T) (*Engine, kv.Store) {
	t.Helper()
	reg := kv.NewRegistry()
	s := memstore.New()
	reg.Register(store, s)
	return NewEngine(EngineConfig{Registry: reg, Now: func() time.Time { return fixedNow }}), s
}

func put(t *testing.T, s kv.Store, key string, rec models.StoredRecord) {
	t.Helper()
	data, err := format.Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), key, data); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, s kv.Store, key string) models.StoredRecord {
	t.Helper()
	data, ok, err := s.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("Get(%s): ok=%v err=%v", key, ok, err)
	}
	rec, err := format.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

// TestEngine_OutOfOfficeIsClosed covers an auto-reply that is closed by the
// close step and never rescanned.
func TestEngine_OutOfOfficeIsClosed(t *testing.T) {
	e, s := setup(t)
	ctx := context.Background()
	put(t, s, "k1", record("clerk@court.example", "Out of Office: back Monday", rules.CategorySupremeCourt))
	put(t, s, "k2", record("clerk@court.example", "Hearing bundle", rules.CategorySupremeCourt))

	decisions, err := e.Scan(ctx, store)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(decisions) != 2 || decisions[0].Level != models.LevelNoAction {
		t.Fatalf("decisions = %+v", decisions)
	}

	res, err := e.CloseNoAction(ctx, store, decisions)
	if err != nil {
		t.Fatalf("CloseNoAction: %v", err)
	}
	if res.Closed != 1 || res.Triaged != 0 {
		t.Errorf("result = %+v", res)
	}

	closed := get(t, s, "k1")
	if closed.Status != models.StatusClosed || closed.ClosedAt == nil || !closed.ClosedAt.Equal(fixedNow) {
		t.Errorf("k1 = %+v", closed)
	}
	if closed.TriageLevel != models.LevelNoAction {
		t.Errorf("k1 level = %q", closed.TriageLevel)
	}
	if get(t, s, "k2").Status != models.StatusPending {
		t.Error("CloseNoAction touched a non NO_ACTION record")
	}

	again, err := e.Scan(ctx, store)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(again) != 1 || again[0].Key != "k2" {
		t.Errorf("rescan = %+v, want only k2", again)
	}
}

func TestEngine_ApplyPreservesContent(t *testing.T) {
	e, s := setup(t)
	ctx := context.Background()
	orig := record("clerk@court.example", "CPR 52.30 application", rules.CategoryReconsiderationCPR530)
	orig.Body = "body text"
	put(t, s, "k", orig)

	decisions, err := e.Scan(ctx, store)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	res, err := e.Apply(ctx, store, decisions)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Triaged != 1 {
		t.Errorf("result = %+v", res)
	}

	got := get(t, s, "k")
	if got.Status != models.StatusTriaged || got.TriageLevel != models.LevelComplex {
		t.Errorf("status = %s level = %s", got.Status, got.TriageLevel)
	}
	if got.TriageSuggestedAction != ActionReconsideration || got.TriagedAt == nil {
		t.Errorf("record = %+v", got)
	}
	if got.From != orig.From || got.Subject != orig.Subject || got.Body != orig.Body ||
		!got.Date.Equal(orig.Date) || !reflect.DeepEqual(got.Namespaces, orig.Namespaces) {
		t.Errorf("content fields changed: %+v", got)
	}

	// Applying the same decisions again is a no-op.
	res, err = e.Apply(ctx, store, decisions)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Skipped != 1 || res.Triaged != 0 {
		t.Errorf("second apply = %+v", res)
	}
}

// TestEngine_ScanDeterministic verifies repeated scans agree and that
// triaged or closed records produce no decisions.
func TestEngine_ScanDeterministic(t *testing.T) {
	e, s := setup(t)
	ctx := context.Background()
	put(t, s, "b", record("x@y.z", "Repairs", "EMAIL_EXPENSES_REPAIRS"))
	put(t, s, "a", record("x@y.z", "Supreme Court order", rules.CategorySupremeCourt))

	triaged := record("x@y.z", "old", "EMAIL_EXPENSES_REPAIRS")
	triaged.Status = models.StatusTriaged
	put(t, s, "c", triaged)
	closed := record("x@y.z", "older", "EMAIL_EXPENSES_REPAIRS")
	closed.Status = models.StatusClosed
	put(t, s, "d", closed)

	first, err := e.Scan(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Scan(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("scans disagree")
	}
	if len(first) != 2 || first[0].Key != "a" || first[1].Key != "b" {
		t.Errorf("decisions = %+v", first)
	}
}

func TestEngine_ScanSkipsMalformed(t *testing.T) {
	e, s := setup(t)
	ctx := context.Background()
	s.Put(ctx, "bad", []byte("{not json"))
	s.Put(ctx, "nostatus", []byte(`{"from":"x"}`))
	put(t, s, "good", record("x@y.z", "hello", "EMAIL_EXPENSES_REPAIRS"))

	decisions, err := e.Scan(ctx, store)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(decisions) != 1 || decisions[0].Key != "good" {
		t.Errorf("decisions = %+v", decisions)
	}
}

func TestEngine_ScanEmptyNamespacesUsesStore(t *testing.T) {
	e, s := setup(t)
	put(t, s, "k", record("x@y.z", "hello"))

	decisions, err := e.Scan(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 || decisions[0].Category != store {
		t.Errorf("decisions = %+v", decisions)
	}
}

func TestEngine_LegacyNotedDecision(t *testing.T) {
	e, s := setup(t)
	put(t, s, "k", record("x@y.z", "hello", "EMAIL_EXPENSES_REPAIRS"))

	res, err := e.Apply(context.Background(), store, []Decision{{Key: "k", Level: "NOTED", Reason: "legacy"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Closed != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := get(t, s, "k"); got.TriageLevel != models.LevelNoAction || got.Status != models.StatusClosed {
		t.Errorf("record = %+v", got)
	}
}

func TestEngine_ApplySkipsMissing(t *testing.T) {
	e, _ := setup(t)
	res, err := e.Apply(context.Background(), store, []Decision{{Key: "gone", Level: models.LevelSimple}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 || len(res.Written) != 0 {
		t.Errorf("result = %+v", res)
	}
}

// TestEngine_ApplyReportsWrittenKeys checks that only records actually
// updated are reported back, so callers never act on skipped decisions.
func TestEngine_ApplyReportsWrittenKeys(t *testing.T) {
	e, s := setup(t)
	ctx := context.Background()
	put(t, s, "a", record("clerk@court.example", "Hearing bundle", rules.CategorySupremeCourt))
	put(t, s, "b", record("clerk@court.example", "Out of Office: back Monday", rules.CategorySupremeCourt))
	done := record("clerk@court.example", "Order sealed", rules.CategorySupremeCourt)
	done.Status = models.StatusTriaged
	put(t, s, "c", done)

	decisions := []Decision{
		{Key: "a", Level: models.LevelSimple},
		{Key: "b", Level: models.LevelNoAction},
		{Key: "c", Level: models.LevelComplex},
		{Key: "gone", Level: models.LevelSimple},
	}
	res, err := e.Apply(ctx, store, decisions)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(res.Written, want) {
		t.Errorf("written = %v, want %v", res.Written, want)
	}
	if res.Triaged != 1 || res.Closed != 1 || res.Skipped != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestEngine_UnknownStore(t *testing.T) {
	e, _ := setup(t)
	if _, err := e.Scan(context.Background(), "NOPE"); !errors.Is(err, kv.ErrUnknownStore) {
		t.Errorf("err = %v, want ErrUnknownStore", err)
	}
}
