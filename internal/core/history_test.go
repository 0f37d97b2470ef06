package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func testEntry(i int) HistoryEntry {
	return HistoryEntry{
		ID:        fmt.Sprintf("entry-%d", i),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		Kind:      KindURL,
		Content:   fmt.Sprintf("https://example.com/%d", i),
		Result: AnalysisResult{
			Verdict:      VerdictSuspicious,
			OverallScore: i % 101,
			Checks:       []CheckResult{{Name: "Domain", Description: "checked", Score: 40}},
		},
	}
}

func TestHistoryAppendNewestFirst(t *testing.T) {
	kv := newMemKV()
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "")
	ctx := context.Background()

	store.Append(ctx, testEntry(1))
	store.Append(ctx, testEntry(2))

	entries := store.Entries()
	if len(entries) != 2 || entries[0].ID != "entry-2" || entries[1].ID != "entry-1" {
		t.Fatalf("entries = %+v, want newest first", entries)
	}
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	kv := newMemKV()
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "")
	ctx := context.Background()

	for i := 1; i <= HistoryCapacity+1; i++ {
		store.Append(ctx, testEntry(i))
	}

	entries := store.Entries()
	if len(entries) != HistoryCapacity {
		t.Fatalf("len = %d, want %d", len(entries), HistoryCapacity)
	}
	if entries[0].ID != fmt.Sprintf("entry-%d", HistoryCapacity+1) {
		t.Errorf("head = %s, want the newest entry", entries[0].ID)
	}
	if _, ok := store.Get("entry-1"); ok {
		t.Error("oldest entry was not evicted")
	}
	if entries[len(entries)-1].ID != "entry-2" {
		t.Errorf("tail = %s, want entry-2", entries[len(entries)-1].ID)
	}
}

func TestHistoryPersistedMatchesMemory(t *testing.T) {
	kv := newMemKV()
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		store.Append(ctx, testEntry(i))
	}

	raw, ok := kv.raw(DefaultHistoryKey)
	if !ok {
		t.Fatal("history was not persisted")
	}
	var persisted []HistoryEntry
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("persisted history is not a JSON array: %v", err)
	}
	if !reflect.DeepEqual(persisted, store.Entries()) {
		t.Errorf("persisted = %+v\nmemory = %+v", persisted, store.Entries())
	}

	reloaded := NewHistoryStore(kv, zaptest.NewLogger(t), "")
	reloaded.Load(ctx)
	if !reflect.DeepEqual(reloaded.Entries(), store.Entries()) {
		t.Error("reloaded history differs from the original")
	}
}

func TestHistoryWireFieldNames(t *testing.T) {
	kv := newMemKV()
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "")
	store.Append(context.Background(), testEntry(7))

	raw, _ := kv.raw(DefaultHistoryKey)
	var generic []map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "createdAt", "kind", "content", "result"} {
		if _, ok := generic[0][key]; !ok {
			t.Errorf("persisted entry has no %q field", key)
		}
	}
	result := generic[0]["result"].(map[string]any)
	for _, key := range []string{"verdict", "overallScore", "checks"} {
		if _, ok := result[key]; !ok {
			t.Errorf("persisted result has no %q field", key)
		}
	}
}

func TestHistoryCorruptLoad(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":        "{{{",
		"object":          `{"id":"x"}`,
		"missing id":      `[{"kind":"URL","result":{"verdict":"SAFE"}}]`,
		"unknown verdict": `[{"id":"a","kind":"URL","result":{"verdict":"FINE"}}]`,
		"score too high":  `[{"id":"a","kind":"URL","result":{"verdict":"SAFE","overallScore":900,"checks":[{"name":"X","description":"Y","score":5}]}}]`,
		"no checks":       `[{"id":"a","kind":"URL","result":{"verdict":"SAFE","overallScore":10}}]`,
		"bad check score": `[{"id":"a","kind":"URL","result":{"verdict":"SAFE","overallScore":10,"checks":[{"name":"X","description":"Y","score":-1}]}}]`,
	} {
		t.Run(name, func(t *testing.T) {
			kv := newMemKV()
			kv.data[DefaultHistoryKey] = raw
			ctx := context.Background()

			store := NewHistoryStore(kv, zaptest.NewLogger(t), "")
			store.Load(ctx)
			if store.Len() != 0 {
				t.Fatalf("len = %d after corrupt load, want 0", store.Len())
			}
			if _, ok := kv.raw(DefaultHistoryKey); ok {
				t.Error("corrupt record was not removed")
			}

			store.Load(ctx)
			if store.Len() != 0 {
				t.Error("second load is not empty")
			}
		})
	}
}

func TestHistoryLoadTruncatesOversizedLog(t *testing.T) {
	var entries []HistoryEntry
	for i := 0; i < HistoryCapacity+10; i++ {
		entries = append(entries, testEntry(i))
	}
	data, _ := json.Marshal(entries)

	kv := newMemKV()
	kv.data[DefaultHistoryKey] = string(data)
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "")
	store.Load(context.Background())

	if store.Len() != HistoryCapacity {
		t.Errorf("len = %d, want %d", store.Len(), HistoryCapacity)
	}
}

func TestHistoryPersistFailureKeepsMemory(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("quota exceeded")
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "")

	store.Append(context.Background(), testEntry(1))

	if store.Len() != 1 {
		t.Errorf("len = %d, want the entry kept in memory", store.Len())
	}
	if kv.sets != 1 {
		t.Errorf("sets = %d, want 1", kv.sets)
	}
}

func TestHistoryClear(t *testing.T) {
	kv := newMemKV()
	store := NewHistoryStore(kv, zaptest.NewLogger(t), "custom")
	ctx := context.Background()

	store.Append(ctx, testEntry(1))
	store.Clear(ctx)

	if store.Len() != 0 {
		t.Errorf("len = %d after clear", store.Len())
	}
	if _, ok := kv.raw("custom"); ok {
		t.Error("persisted record survived clear")
	}
	store.Load(ctx)
	if store.Len() != 0 {
		t.Error("cleared history came back on load")
	}
}

func TestHistoryEntriesAreCopies(t *testing.T) {
	store := NewHistoryStore(newMemKV(), zaptest.NewLogger(t), "")
	entry := testEntry(1)
	store.Append(context.Background(), entry)

	entry.Result.Checks[0].Name = "mutated"
	got := store.Entries()
	got[0].ID = "changed"

	again := store.Entries()
	if again[0].ID != "entry-1" {
		t.Error("Entries exposes internal slice")
	}
	if again[0].Result.Checks[0].Name != "Domain" {
		t.Error("Append aliases the caller's checks")
	}
}
