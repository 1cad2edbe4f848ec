package main

import (
	"testing"

	"github.com/matheus3301/sightings/internal/sighting"
)

func TestViewOptions(t *testing.T) {
	t.Cleanup(func() { listOnly, listSeen, listDistance, listFrom = "all", "", "", "" })

	listOnly, listSeen, listDistance, listFrom = "unidentified", "desc", "asc", "-3.73, -38.52"
	opts, err := viewOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.ShowIdentified || !opts.ShowUnidentified {
		t.Errorf("filter = %+v", opts)
	}
	if opts.BySeen != sighting.Descending || opts.ByDistance != sighting.Ascending {
		t.Errorf("orders = %q, %q", opts.BySeen, opts.ByDistance)
	}
	if opts.Origin.Latitude != -3.73 || opts.Origin.Longitude != -38.52 {
		t.Errorf("origin = %+v", opts.Origin)
	}
}

func TestViewOptionsRejectsBadInput(t *testing.T) {
	t.Cleanup(func() { listOnly, listSeen, listDistance, listFrom = "all", "", "", "" })

	cases := []func(){
		func() { listOnly = "some" },
		func() { listSeen = "up" },
		func() { listFrom = "12.5" },
		func() { listFrom = "north,south" },
	}
	for i, set := range cases {
		listOnly, listSeen, listDistance, listFrom = "all", "", "", ""
		set()
		if _, err := viewOptions(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a rather long description", 8); got != "a rathe…" {
		t.Errorf("truncate = %q", got)
	}
}
