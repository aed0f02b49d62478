package voicesource

import (
	"strings"
	"testing"
	"time"
)

func TestStdinSourceForwardsLines(t *testing.T) {
	r := strings.NewReader("first line\nsecond line\nthird line\n")
	s := NewStdinSource(r, 4)

	var got []string
	timeout := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case line, ok := <-s.Chunks():
			if !ok {
				t.Fatalf("channel closed early after %d lines", len(got))
			}
			got = append(got, line)
		case <-timeout:
			t.Fatalf("timed out waiting for line %d", i)
		}
	}

	want := []string{"first line", "second line", "third line"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("line %d = %q, want %q", i, got[i], w)
		}
	}

	select {
	case _, ok := <-s.Chunks():
		if ok {
			t.Fatalf("expected channel to close after input exhausted")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for channel close")
	}
}
