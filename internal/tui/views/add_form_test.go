package views

import (
	"testing"
	"time"
)

func TestParseSighting(t *testing.T) {
	s, err := ParseSighting("kingfisher on a post", "2024-05-01 07:30", "38.72", "-9.14", "")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 5, 1, 7, 30, 0, 0, time.Local)
	if !s.SeenAt.Equal(want) {
		t.Errorf("seen at = %v, want %v", s.SeenAt, want)
	}
	if s.Geolocation.Latitude != 38.72 || s.Geolocation.Longitude != -9.14 {
		t.Errorf("geolocation = %+v", s.Geolocation)
	}
}

func TestParseSightingDefaults(t *testing.T) {
	before := time.Now()
	s, err := ParseSighting("owl", "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if s.SeenAt.Before(before) {
		t.Error("empty seen time did not default to now")
	}
}

func TestParseSightingRejects(t *testing.T) {
	tests := []struct {
		name                        string
		desc, seen, lat, lon, photo string
	}{
		{"no description", "", "", "", "", ""},
		{"bad time", "owl", "yesterday", "", "", ""},
		{"bad latitude", "owl", "", "north", "", ""},
		{"latitude range", "owl", "", "91", "", ""},
		{"longitude range", "owl", "", "0", "-181", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSighting(tt.desc, tt.seen, tt.lat, tt.lon, tt.photo); err == nil {
				t.Error("ParseSighting() accepted invalid input")
			}
		})
	}
}
