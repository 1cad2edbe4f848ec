// Package share turns a sighting into a link other observers can open, and
// renders that link as a terminal QR code.
package share

import (
	"errors"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DetailPath is the page path of a single sighting.
const DetailPath = "/bird_sight/"

var ErrNoSighting = errors.New("sighting id is required")

// URL returns the detail page link for sightID on the server at base.
func URL(base, sightID string) (string, error) {
	if strings.TrimSpace(sightID) == "" {
		return "", ErrNoSighting
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	return u.JoinPath(DetailPath, sightID).String(), nil
}

// Render draws content as a QR code using Unicode half blocks, two modules
// per character cell. Each line is prefixed with indent.
func Render(content, indent string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", err
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString(indent)
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String(), nil
}
