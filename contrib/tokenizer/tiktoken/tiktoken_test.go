package tiktoken

import "testing"

// The cl100k_base vocabulary is downloaded on first use; skip when the
// fetch fails so offline runs stay green.
func newTestCounter(t *testing.T) *Counter {
	t.Helper()
	c, err := New("")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	return c
}

func TestCountTokens(t *testing.T) {
	c := newTestCounter(t)

	if got := c.CountTokens(""); got != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", got)
	}
	short := c.CountTokens("what is a derivative")
	if short <= 0 {
		t.Fatalf("CountTokens(short) = %d, want > 0", short)
	}
	long := c.CountTokens("what is a derivative and how does it relate to the slope of a tangent line")
	if long <= short {
		t.Errorf("longer text counted %d tokens, short counted %d", long, short)
	}
}

func TestUnknownEncoding(t *testing.T) {
	if _, err := New("no-such-encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
