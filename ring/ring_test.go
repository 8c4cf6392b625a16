package ring

import (
	"math/rand"
	"testing"
)

func TestNewPanics(t *testing.T) {
	for _, size := range []int{0, 1, 3, 100, 513} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%d) did not panic", size)
				}
			}()
			New(size)
		}()
	}
}

func TestPutGet(t *testing.T) {
	r := New(4)
	if _, ok := r.Get(); ok {
		t.Fatal("Get on empty ring succeeded")
	}
	for i := 0; i < 4; i++ {
		if !r.Put(byte(i)) {
			t.Fatalf("Put(%d) failed", i)
		}
	}
	if r.Overrun() {
		t.Fatal("overrun set before the ring was full")
	}
	if r.Put(4) {
		t.Fatal("Put on full ring succeeded")
	}
	if !r.Overrun() {
		t.Fatal("overrun not set")
	}
	for i := 0; i < 4; i++ {
		b, ok := r.Get()
		if !ok || b != byte(i) {
			t.Fatalf("Get = %d, %v; want %d, true", b, ok, i)
		}
	}
	if _, ok := r.Get(); ok {
		t.Fatal("dropped byte was stored")
	}
	r.Clear()
	if r.Overrun() {
		t.Fatal("Clear did not reset overrun")
	}
}

func TestRead(t *testing.T) {
	r := New(8)
	// Move the cursors so the data wraps around the end of the buffer.
	for i := 0; i < 6; i++ {
		r.Put(0)
	}
	r.Read(make([]byte, 6))
	for i := 0; i < 5; i++ {
		r.Put(byte('a' + i))
	}
	p := make([]byte, 3)
	if n := r.Read(p); n != 3 || string(p) != "abc" {
		t.Fatalf("Read = %d %q", n, p)
	}
	if n := r.Read(p); n != 2 || string(p[:n]) != "de" {
		t.Fatalf("Read = %d %q", n, p[:n])
	}
	if n := r.Read(p); n != 0 {
		t.Fatalf("Read on empty ring = %d", n)
	}
}

func TestReadable(t *testing.T) {
	r := New(4)
	select {
	case <-r.Readable():
		t.Fatal("notification without data")
	default:
	}
	r.Put(1)
	r.Put(2)
	select {
	case <-r.Readable():
	default:
		t.Fatal("no notification after Put")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
}

// Interleaved appends and reads never lose or duplicate a byte unless the ring
// overflows, in which case exactly the byte that did not fit is dropped.
func TestInterleaved(t *testing.T) {
	const size = 16
	rnd := rand.New(rand.NewSource(1))
	for iter := 0; iter < 200; iter++ {
		r := New(size)
		var (
			next    byte
			want    []byte
			got     []byte
			dropped int
		)
		for step := 0; step < 4*size; step++ {
			if rnd.Intn(3) != 0 {
				full := r.Len() == size
				if ok := r.Put(next); ok {
					want = append(want, next)
				} else {
					if !full {
						t.Fatal("Put failed on non-full ring")
					}
					dropped++
				}
				next++
			} else if b, ok := r.Get(); ok {
				got = append(got, b)
			}
		}
		for {
			b, ok := r.Get()
			if !ok {
				break
			}
			got = append(got, b)
		}
		if string(got) != string(want) {
			t.Fatalf("iter %d: got %v, want %v", iter, got, want)
		}
		if r.Overrun() != (dropped != 0) {
			t.Fatalf("iter %d: overrun=%v dropped=%d", iter, r.Overrun(), dropped)
		}
	}
}
