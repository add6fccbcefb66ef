package topology

import "testing"

func TestYearRouting(t *testing.T) {
	s := NewShards()
	listA := []Shard{{Master: Endpoint{Addr: "a-master:3306"}}}
	listB := []Shard{{Master: Endpoint{Addr: "b-master:3306"}}}

	idxA, err := s.PushYearRange(2018, 2019, listA)
	if err != nil {
		t.Fatalf("PushYearRange A: %v", err)
	}
	idxB, err := s.PushYearRange(2020, 2021, listB)
	if err != nil {
		t.Fatalf("PushYearRange B: %v", err)
	}
	if idxA == idxB {
		t.Fatalf("expected distinct list indices")
	}

	for _, y := range []int{2018, 2019} {
		got := s.Get(y)
		if len(got) != 1 || got[0].Master.Addr != "a-master:3306" {
			t.Fatalf("Get(%d) = %v, want list A", y, got)
		}
	}
	for _, y := range []int{2020, 2021} {
		got := s.Get(y)
		if len(got) != 1 || got[0].Master.Addr != "b-master:3306" {
			t.Fatalf("Get(%d) = %v, want list B", y, got)
		}
	}
}

func TestYearRoutingExactlyAdjacentRanges(t *testing.T) {
	s := NewShards()
	listA := []Shard{{Master: Endpoint{Addr: "a"}}}
	listB := []Shard{{Master: Endpoint{Addr: "b"}}}

	if _, err := s.PushYearRange(2015, 2019, listA); err != nil {
		t.Fatalf("PushYearRange A: %v", err)
	}
	if _, err := s.PushYearRange(2020, 2024, listB); err != nil {
		t.Fatalf("PushYearRange B: %v", err)
	}

	if got := s.Get(2019)[0].Master.Addr; got != "a" {
		t.Fatalf("Get(2019) = %s, want a", got)
	}
	if got := s.Get(2020)[0].Master.Addr; got != "b" {
		t.Fatalf("Get(2020) = %s, want b", got)
	}
}

func TestYearRoutingHoleYear(t *testing.T) {
	s := NewShards()
	listA := []Shard{{Master: Endpoint{Addr: "a"}}}
	listB := []Shard{{Master: Endpoint{Addr: "b"}}}

	if _, err := s.PushYearRange(2015, 2016, listA); err != nil {
		t.Fatalf("PushYearRange A: %v", err)
	}
	if _, err := s.PushYearRange(2018, 2019, listB); err != nil {
		t.Fatalf("PushYearRange B: %v", err)
	}

	// 2017 is an intentional hole: no shard list maps to it.
	if got := s.Get(2017); got != nil {
		t.Fatalf("Get(2017) = %v, want nil (hole year)", got)
	}
}

func TestYearRoutingOverlapRejected(t *testing.T) {
	s := NewShards()
	if _, err := s.PushYearRange(2015, 2020, []Shard{{}}); err != nil {
		t.Fatalf("PushYearRange: %v", err)
	}
	if _, err := s.PushYearRange(2018, 2022, []Shard{{}}); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestYearOutOfRange(t *testing.T) {
	s := NewShards()
	if got := s.Get(1999); got != nil {
		t.Fatalf("Get(1999) = %v, want nil", got)
	}
	if got := s.Get(2100); got != nil {
		t.Fatalf("Get(2100) = %v, want nil", got)
	}
}
