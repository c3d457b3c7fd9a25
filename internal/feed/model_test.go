package feed

import (
	"testing"
	"time"
)

func TestSnapshotKeepsLatestRow(t *testing.T) {
	earlier := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(24 * time.Hour)

	s := NewSnapshot([]Row{
		{LicensePlate: "1234 ABC", Availability: AvailabilityDisponible, CreatedAt: earlier},
		{LicensePlate: "1234ABC", Availability: AvailabilityReservado, CreatedAt: later},
	})

	if s.Len() != 1 {
		t.Fatalf("expected duplicate rows collapsed, got %d", s.Len())
	}
	if got := s.Availability("1234ABC"); got != AvailabilityReservado {
		t.Fatalf("expected latest availability, got %s", got)
	}
}

func TestSnapshotMedia(t *testing.T) {
	s := NewSnapshot([]Row{
		{LicensePlate: "0001AAA", PhotoURL1: "https://cdn/a.jpg"},
		{LicensePlate: "0002BBB", PhotoURL2: "https://cdn/b.jpg"},
		{LicensePlate: "0003CCC"},
	})

	if !s.HasMedia("0001 AAA") || !s.HasMedia("0002BBB") {
		t.Fatalf("expected media rows detected")
	}
	if s.HasMedia("0003CCC") || s.HasMedia("9999ZZZ") {
		t.Fatalf("expected no media for bare or unknown plates")
	}
	if !s.Contains("0003CCC") || s.Contains("9999ZZZ") {
		t.Fatalf("unexpected containment results")
	}
}
