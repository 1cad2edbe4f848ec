package sighting

import (
	"math"
	"slices"
)

const earthRadiusKm = 6371

// Distance returns the great-circle distance between two points in kilometers.
func Distance(a, b Geolocation) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Order is a sort direction. The zero value leaves the order untouched.
type Order string

const (
	Unsorted   Order = ""
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// Next cycles an order the way the list toggles do: none, first, second, none.
func (o Order) Next(first Order) Order {
	second := Ascending
	if first == Ascending {
		second = Descending
	}
	switch o {
	case Unsorted:
		return first
	case first:
		return second
	default:
		return Unsorted
	}
}

// ViewOptions filters and sorts a list of sightings for display.
type ViewOptions struct {
	ShowIdentified   bool
	ShowUnidentified bool
	BySeen           Order
	ByDistance       Order
	// Origin is the reference point for distance sorting.
	Origin Geolocation
}

// DefaultViewOptions shows everything in its stored order.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{ShowIdentified: true, ShowUnidentified: true}
}

// Arrange returns a filtered, sorted copy of list. Distance sorting takes
// precedence over seen-time sorting when both are set.
func Arrange(list []Sighting, opts ViewOptions) []Sighting {
	out := make([]Sighting, 0, len(list))
	for _, s := range list {
		if s.Identified() && opts.ShowIdentified || !s.Identified() && opts.ShowUnidentified {
			out = append(out, s)
		}
	}

	if opts.BySeen != Unsorted {
		slices.SortStableFunc(out, func(a, b Sighting) int {
			c := a.SeenAt.Compare(b.SeenAt)
			if opts.BySeen == Descending {
				return -c
			}
			return c
		})
	}

	if opts.ByDistance != Unsorted {
		slices.SortStableFunc(out, func(a, b Sighting) int {
			da := Distance(opts.Origin, a.Geolocation)
			db := Distance(opts.Origin, b.Geolocation)
			c := cmpFloat(da, db)
			if opts.ByDistance == Descending {
				return -c
			}
			return c
		})
	}

	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
