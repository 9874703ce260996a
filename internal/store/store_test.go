// ABOUTME: Tests for StoreRecord JSON shape and Product accessors

package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStoreRecordJSONFlattensExtras(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &StoreRecord{
		ID:           "store-1",
		Name:         "Corner Shop",
		URL:          "http://localhost:9001",
		Status:       StatusOnline,
		LastSeen:     now,
		RegisteredAt: now,
		Extra: map[string]any{
			"owner": "kari",
			"name":  "Imposter", // collides with a well-known key
		},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if obj["owner"] != "kari" {
		t.Errorf("extra field not flattened: got %v", obj["owner"])
	}
	if obj["name"] != "Corner Shop" {
		t.Errorf("well-known field must win over colliding extra: got %v", obj["name"])
	}
	if _, ok := obj["location"]; ok {
		t.Error("empty location should be omitted")
	}
	if obj["lastSeen"] != "2025-06-01T12:00:00Z" {
		t.Errorf("lastSeen not RFC3339: got %v", obj["lastSeen"])
	}
}

func TestStoreRecordJSONRoundTrip(t *testing.T) {
	in := []byte(`{
		"storeId": "store-1",
		"name": "Corner Shop",
		"url": "http://localhost:9001",
		"location": "Oslo",
		"status": "online",
		"lastSeen": "2025-06-01T12:00:00Z",
		"registeredAt": "2025-05-01T09:00:00Z",
		"owner": "kari",
		"capacity": 12
	}`)

	var rec StoreRecord
	if err := json.Unmarshal(in, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if rec.ID != "store-1" || rec.Location != "Oslo" {
		t.Errorf("well-known fields not picked up: %+v", rec)
	}
	if rec.Extra["owner"] != "kari" {
		t.Errorf("extra string missing: %v", rec.Extra)
	}
	if rec.Extra["capacity"] != 12.0 {
		t.Errorf("extra number missing: %v", rec.Extra)
	}
	if _, ok := rec.Extra["storeId"]; ok {
		t.Error("well-known keys must not leak into Extra")
	}
	if !rec.RegisteredAt.Equal(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("registeredAt: got %v", rec.RegisteredAt)
	}
}

func TestStoreRecordClone(t *testing.T) {
	rec := &StoreRecord{ID: "a", Extra: map[string]any{"k": "v"}}
	c := rec.Clone()
	c.Extra["k"] = "changed"

	if rec.Extra["k"] != "v" {
		t.Error("clone shares the Extra map with the original")
	}
}

func TestProductAccessors(t *testing.T) {
	p := Product{"name": "Hammer", "category": "tools"}
	p.SetStoreID("store-1")

	if p.StoreID() != "store-1" || p.Name() != "Hammer" || p.Category() != "tools" {
		t.Errorf("accessors: %v", p)
	}

	empty := Product{"price": 3}
	if empty.StoreID() != "" || empty.Name() != "" || empty.Category() != "" {
		t.Error("missing or mistyped fields should read as empty strings")
	}
}
