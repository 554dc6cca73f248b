package tle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStoreUpdate(t *testing.T) {
	t0 := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	if s.Get() != nil || s.Version() != 0 || s.Age(t0) != -1 {
		t.Fatal("new store is not empty")
	}

	first := NewDataset("a", t0, nil)
	got, replaced, err := s.Update(func(cur *Dataset) (*Dataset, error) {
		if cur != nil {
			t.Errorf("current = %v, want nil", cur)
		}
		return first, nil
	})
	if err != nil || !replaced || got != first {
		t.Fatalf("first update = %v, %v, %v", got, replaced, err)
	}
	if s.Version() != first.Version() {
		t.Errorf("version = %d, want %d", s.Version(), first.Version())
	}

	tests := []struct {
		name         string
		next         *Dataset
		err          error
		wantReplaced bool
	}{
		{"older snapshot", NewDataset("b", t0.Add(-time.Hour), nil), nil, false},
		{"same fetch time", NewDataset("c", t0, nil), nil, false},
		{"nothing returned", nil, nil, false},
		{"failure", NewDataset("d", t0.Add(time.Hour), nil), errors.New("boom"), false},
		{"newer snapshot", NewDataset("e", t0.Add(time.Hour), nil), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Get()
			got, replaced, err := s.Update(func(*Dataset) (*Dataset, error) { return tt.next, tt.err })
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if replaced != tt.wantReplaced {
				t.Errorf("replaced = %v, want %v", replaced, tt.wantReplaced)
			}
			want := before
			if tt.wantReplaced {
				want = tt.next
			}
			if s.Get() != want {
				t.Errorf("published %q, want %q", s.Get().Source, want.Source)
			}
			if err == nil && got != want {
				t.Errorf("returned %q, want %q", got.Source, want.Source)
			}
		})
	}
	if got := s.Age(t0.Add(3 * time.Hour)); got != 2*time.Hour {
		t.Errorf("age = %v, want 2h", got)
	}
}

func TestStoreUpdatesDoNotOverlap(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	var running, overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(*Dataset) (*Dataset, error) {
				if running.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return NewDataset("w", t0.Add(time.Duration(i)*time.Minute), nil), nil
			})
		}()
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("%d updates overlapped", overlaps.Load())
	}
	if want := t0.Add(7 * time.Minute); !s.Get().FetchedAt.Equal(want) {
		t.Errorf("published %v, want the newest %v", s.Get().FetchedAt, want)
	}
}
