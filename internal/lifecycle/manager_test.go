package lifecycle

import (
	"errors"
	"strings"
	"testing"
)

func TestCloseOrderIsLIFO(t *testing.T) {
	m := NewManager()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		m.RegisterFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"third", "second", "first"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("close order = %v, want %v", order, want)
		}
	}
}

func TestCloseRunsAllAndJoinsErrors(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	var late bool
	m.RegisterFunc("store", func() error {
		late = true
		return nil
	})
	m.RegisterFunc("cache", func() error { return boom })

	err := m.Close()
	if !errors.Is(err, boom) {
		t.Fatalf("Close error = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "cache") {
		t.Errorf("error %q does not name the failing resource", err)
	}
	if !late {
		t.Error("earlier resource was not closed after a failure")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager()
	calls := 0
	m.RegisterFunc("once", func() error {
		calls++
		return nil
	})

	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if calls != 1 {
		t.Fatalf("closer ran %d times, want 1", calls)
	}
}
