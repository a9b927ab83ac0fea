package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend(3)

	handle, err := b.Create("test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle != 3 {
		t.Fatalf("Expected first handle 3, got %d", handle)
	}

	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_NoHandleReuse(t *testing.T) {
	b := NewLocalBackend(3)

	h1, _ := b.Create("a")
	h2, _ := b.Create("b")
	b.Drop(h1)
	b.Drop(h2)

	h3, _ := b.Create("c")
	if h3 != 5 {
		t.Fatalf("Expected handle 5 after dropping 3 and 4, got %d", h3)
	}
}

func TestLocalBackend_Replace(t *testing.T) {
	b := NewLocalBackend(3)
	h, _ := b.Create("a")

	old, had, err := b.Replace(h, "b")
	if err != nil || !had || old != "a" {
		t.Fatalf("Replace = (%v, %v, %v)", old, had, err)
	}

	b.Drop(h)
	_, had, err = b.Replace(h, "c")
	if err != nil || had {
		t.Fatalf("Replace on dropped handle = (%v, %v)", had, err)
	}

	if _, _, err := b.Replace(99, "x"); !errors.Is(err, ErrNeverAssigned) {
		t.Fatalf("Expected ErrNeverAssigned, got %v", err)
	}
	if _, _, err := b.Replace(2, "x"); !errors.Is(err, ErrNeverAssigned) {
		t.Fatalf("Expected ErrNeverAssigned below base, got %v", err)
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend(1)
	d := &dropCounter{}
	b.Create(d)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Expected Drop on Close, got %d", d.count)
	}

	if _, err := b.Create("x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}

	// second close is a no-op
	if err := b.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend(3)
	var wg sync.WaitGroup
	seen := make(chan Handle, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := b.Create(i)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			seen <- h
		}(i)
	}
	wg.Wait()
	close(seen)

	unique := make(map[Handle]bool)
	for h := range seen {
		if unique[h] {
			t.Fatalf("handle %d assigned twice", h)
		}
		unique[h] = true
	}
	if b.Len() != 100 {
		t.Fatalf("Expected Len 100, got %d", b.Len())
	}
}

func TestLocalBackend_EachOrdered(t *testing.T) {
	b := NewLocalBackend(3)
	for i := 0; i < 5; i++ {
		b.Create(i)
	}
	b.Drop(4)

	var got []Handle
	b.Each(func(h Handle, _ any) bool {
		got = append(got, h)
		return true
	})

	want := []Handle{3, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("Each visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each visited %v, want %v", got, want)
		}
	}

	count := 0
	b.Each(func(Handle, any) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("Each should stop early, visited %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend(3)

	if _, ok := b.Get(0); ok {
		t.Fatal("Get(0) should fail")
	}
	if _, ok := b.Get(3); ok {
		t.Fatal("Get on unassigned handle should fail")
	}
	if _, ok := b.Drop(3); ok {
		t.Fatal("Drop on unassigned handle should fail")
	}
}
