package main

import "testing"

func TestActionFor(t *testing.T) {
	for _, cmd := range []string{"up", "down", "status"} {
		if fn, err := actionFor(cmd); err != nil || fn == nil {
			t.Fatalf("actionFor(%q) = %p, %v", cmd, fn, err)
		}
	}
	if _, err := actionFor("sideways"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
