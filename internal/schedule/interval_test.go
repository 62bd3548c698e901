package schedule

import "testing"

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{Start: 540, End: 580}

	if a.Overlaps(Interval{Start: 580, End: 595}) {
		t.Fatalf("touching intervals must not overlap")
	}
	if a.Overlaps(Interval{Start: 500, End: 540}) {
		t.Fatalf("touching intervals must not overlap")
	}
	if !a.Overlaps(Interval{Start: 570, End: 600}) {
		t.Fatalf("intersecting intervals must overlap")
	}
	if !a.Overlaps(Interval{Start: 500, End: 700}) {
		t.Fatalf("containing interval must overlap")
	}
}

func TestIntervalContains(t *testing.T) {
	work := Interval{Start: 480, End: 1020}

	if !work.Contains(Interval{Start: 720, End: 780}) {
		t.Fatalf("inner interval must be contained")
	}
	if work.Contains(Interval{Start: 400, End: 500}) {
		t.Fatalf("interval crossing the left edge must not be contained")
	}
}
