package tui

import (
	"errors"
	"strconv"
	"strings"

	"github.com/matheus3301/sightings/internal/sighting"
)

// Command is a parsed ':' command.
type Command struct {
	Name string
	Args string
}

var aliases = map[string]string{
	"q":    "quit",
	"h":    "help",
	"s":    "sync",
	"id":   "identify",
	"f":    "filter",
	"near": "from",
}

// ParseCommand parses input without the leading ':'. Names are lowercased
// and short aliases expanded.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Point parses Args as "lat,lon".
func (c Command) Point() (sighting.Geolocation, error) {
	lat, lon, ok := strings.Cut(c.Args, ",")
	if !ok {
		return sighting.Geolocation{}, errors.New("expected lat,lon")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil || la < -90 || la > 90 {
		return sighting.Geolocation{}, errors.New("bad latitude")
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil || lo < -180 || lo > 180 {
		return sighting.Geolocation{}, errors.New("bad longitude")
	}
	return sighting.Geolocation{Latitude: la, Longitude: lo}, nil
}
