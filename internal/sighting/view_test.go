package sighting

import (
	"math"
	"testing"
	"time"
)

func TestDistance(t *testing.T) {
	sheffield := Geolocation{Latitude: 53.3811, Longitude: -1.4701}
	london := Geolocation{Latitude: 51.5072, Longitude: -0.1276}

	got := Distance(sheffield, london)
	if math.Abs(got-227) > 10 {
		t.Errorf("Distance(sheffield, london) = %.1f km, want ~227", got)
	}
	if d := Distance(london, london); d != 0 {
		t.Errorf("Distance to self = %f, want 0", d)
	}
}

func TestArrangeFilters(t *testing.T) {
	list := []Sighting{
		{ID: "a", Identification: "robin"},
		{ID: "b"},
		{ID: "c", Identification: "wren"},
	}

	tests := []struct {
		name string
		opts ViewOptions
		want []string
	}{
		{"all", DefaultViewOptions(), []string{"a", "b", "c"}},
		{"identified only", ViewOptions{ShowIdentified: true}, []string{"a", "c"}},
		{"unidentified only", ViewOptions{ShowUnidentified: true}, []string{"b"}},
		{"none", ViewOptions{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Arrange(list, tt.opts))
			if !equal(got, tt.want) {
				t.Errorf("Arrange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArrangeSorts(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	list := []Sighting{
		{ID: "mid", SeenAt: base.Add(time.Hour), Geolocation: Geolocation{Latitude: 10}},
		{ID: "old", SeenAt: base, Geolocation: Geolocation{Latitude: 1}},
		{ID: "new", SeenAt: base.Add(2 * time.Hour), Geolocation: Geolocation{Latitude: 20}},
	}

	opts := DefaultViewOptions()
	opts.BySeen = Descending
	if got := ids(Arrange(list, opts)); !equal(got, []string{"new", "mid", "old"}) {
		t.Errorf("seen desc = %v", got)
	}

	opts = DefaultViewOptions()
	opts.ByDistance = Ascending
	if got := ids(Arrange(list, opts)); !equal(got, []string{"old", "mid", "new"}) {
		t.Errorf("distance asc = %v", got)
	}

	// Arrange must not reorder the caller's slice.
	if list[0].ID != "mid" {
		t.Error("input slice was modified")
	}
}

func TestOrderNext(t *testing.T) {
	o := Unsorted
	o = o.Next(Descending)
	if o != Descending {
		t.Fatalf("got %q, want desc", o)
	}
	o = o.Next(Descending)
	if o != Ascending {
		t.Fatalf("got %q, want asc", o)
	}
	if o = o.Next(Descending); o != Unsorted {
		t.Fatalf("got %q, want unsorted", o)
	}
}

func ids(list []Sighting) []string {
	var out []string
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
