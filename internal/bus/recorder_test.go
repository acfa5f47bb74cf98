package bus

import "testing"

func TestRecorder_RecentReturnsNewestLast(t *testing.T) {
	b := New()
	r := NewRecorder(2)
	r.Attach(b, "rec")

	b.Publish(Event{Name: "a"})
	b.Publish(Event{Name: "b"})
	b.Publish(Event{Name: "c"})

	recent := r.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("expected capacity-bounded ring of 2, got %d", len(recent))
	}
	if recent[0].Name != "b" || recent[1].Name != "c" {
		t.Fatalf("expected [b c], got %v", recent)
	}
}

func TestRecorder_LimitTruncates(t *testing.T) {
	b := New()
	r := NewRecorder(10)
	r.Attach(b, "rec")
	b.Publish(Event{Name: "a"})
	b.Publish(Event{Name: "b"})

	if got := r.Recent(1); len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
}
