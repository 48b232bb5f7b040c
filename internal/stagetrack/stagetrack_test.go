package stagetrack

import (
	"errors"
	"testing"
	"time"
)

func TestRunRecordsDuration(t *testing.T) {
	tr := New()

	fake := time.Unix(0, 0)
	tr.now = func() time.Time {
		fake = fake.Add(25 * time.Millisecond)
		return fake
	}

	if err := tr.Run("segment-render", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := tr.Snapshot()
	if snap["segment-render"] != 25 {
		t.Errorf("duration = %dms, want 25", snap["segment-render"])
	}
}

func TestRunRecordsOnFailure(t *testing.T) {
	tr := New()
	wantErr := errors.New("encoder exploded")

	err := tr.Run("segment-concat", func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("error not propagated: %v", err)
	}
	if _, ok := tr.Snapshot()["segment-concat"]; !ok {
		t.Error("duration must be recorded even when the action fails")
	}
}

func TestRunResultReturnsValue(t *testing.T) {
	tr := New()
	got, err := RunResult(tr, "render-setup", func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("got %d, %v", got, err)
	}
	if _, ok := tr.Snapshot()["render-setup"]; !ok {
		t.Error("missing recorded stage")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := New()
	_ = tr.Run("a", func() error { return nil })

	snap := tr.Snapshot()
	snap["a"] = 999

	if tr.Snapshot()["a"] == 999 {
		t.Error("snapshot must not alias internal state")
	}
}

func TestLastWriteWinsForRepeatedStage(t *testing.T) {
	tr := New()

	fake := time.Unix(0, 0)
	step := 10 * time.Millisecond
	tr.now = func() time.Time {
		fake = fake.Add(step)
		return fake
	}

	_ = tr.Run("x", func() error { return nil })
	step = 40 * time.Millisecond
	_ = tr.Run("x", func() error { return nil })

	if got := tr.Snapshot()["x"]; got != 40 {
		t.Errorf("duration = %dms, want last write 40", got)
	}
}
