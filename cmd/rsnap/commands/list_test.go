package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/thoreinstein/rsnap/internal/snapshot"
)

func testSnapshots() []snapshot.Snapshot {
	created := time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local)
	return []snapshot.Snapshot{
		{
			ID:         "20260829T020000",
			Status:     snapshot.StatusFailed,
			CreatedAt:  created.AddDate(0, 0, -1),
			FinishedAt: created.AddDate(0, 0, -1).Add(time.Minute),
		},
		{
			ID:          "20260830T020000",
			Status:      snapshot.StatusComplete,
			CreatedAt:   created,
			FinishedAt:  created.Add(2 * time.Minute),
			FailedPaths: []string{"/etc/shadow"},
		},
	}
}

func TestOutputListTabular(t *testing.T) {
	var buf bytes.Buffer
	if err := outputListTabular(&buf, testSnapshots()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"20260829T020000", "20260830T020000", "failed", "complete", "ID", "STATUS"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestOutputListTabular_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := outputListTabular(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No snapshots") {
		t.Errorf("empty listing output: %q", buf.String())
	}
}

func TestOutputListJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := outputListJSON(&buf, testSnapshots()); err != nil {
		t.Fatal(err)
	}

	var decoded []snapshotOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d entries", len(decoded))
	}
	if decoded[1].Status != "complete" {
		t.Errorf("status = %q", decoded[1].Status)
	}
	if len(decoded[1].FailedPaths) != 1 {
		t.Errorf("failed paths = %v", decoded[1].FailedPaths)
	}
	if decoded[0].FinishedAt == nil {
		t.Error("finished_at missing for finalized snapshot")
	}
}
