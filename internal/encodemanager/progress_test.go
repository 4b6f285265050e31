package encodemanager

import (
	"testing"
)

func TestProgressTrackerThrottle(t *testing.T) {
	p := &progressTracker{}
	if !p.shouldPersist("encoding", 0) {
		t.Fatal("expected first update to persist")
	}
	p.persisted, p.lastStage, p.lastPercent = true, "encoding", 10

	if p.shouldPersist("encoding", 10.5) {
		t.Fatal("expected sub-point change to be skipped")
	}
	if !p.shouldPersist("encoding", 11) {
		t.Fatal("expected one point change to persist")
	}
	if !p.shouldPersist("validation", 10) {
		t.Fatal("expected stage change to persist")
	}
}
