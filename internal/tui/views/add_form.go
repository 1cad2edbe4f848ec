package views

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/tui/ui"
	"github.com/rivo/tview"
)

const seenLayout = "2006-01-02 15:04"

// AddForm collects a new sighting.
type AddForm struct {
	*tview.Form
	theme    *ui.Theme
	onSubmit func(s sighting.Sighting)
	onError  func(err error)
	onCancel func()
}

func NewAddForm(theme *ui.Theme) *AddForm {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" New sighting ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)

	af := &AddForm{Form: form, theme: theme}
	af.build()
	return af
}

func (af *AddForm) build() {
	af.Clear(true)
	af.AddInputField("Description", "", 0, nil, nil)
	af.AddInputField("Seen at", time.Now().Format(seenLayout), 20, nil, nil)
	af.AddInputField("Latitude", "", 14, nil, nil)
	af.AddInputField("Longitude", "", 14, nil, nil)
	af.AddInputField("Photo URL", "", 0, nil, nil)
	af.AddButton("Save", af.submit)
	af.AddButton("Cancel", func() {
		if af.onCancel != nil {
			af.onCancel()
		}
	})
}

// Name implements Component.
func (af *AddForm) Name() string { return "Add" }

// Start implements Component.
func (af *AddForm) Start() {
	af.build()
	af.SetFocus(0)
}

// Stop implements Component.
func (af *AddForm) Stop() {}

// Hints implements Component.
func (af *AddForm) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Save"},
		{Key: "Esc", Description: "Cancel"},
	}
}

func (af *AddForm) SetOnSubmit(fn func(s sighting.Sighting)) { af.onSubmit = fn }

func (af *AddForm) SetOnError(fn func(err error)) { af.onError = fn }

func (af *AddForm) SetOnCancel(fn func()) { af.onCancel = fn }

func (af *AddForm) text(label string) string {
	if in, ok := af.GetFormItemByLabel(label).(*tview.InputField); ok {
		return strings.TrimSpace(in.GetText())
	}
	return ""
}

func (af *AddForm) submit() {
	s, err := ParseSighting(af.text("Description"), af.text("Seen at"), af.text("Latitude"), af.text("Longitude"), af.text("Photo URL"))
	if err != nil {
		if af.onError != nil {
			af.onError(err)
		}
		return
	}
	if af.onSubmit != nil {
		af.onSubmit(s)
	}
}

// ParseSighting validates the form fields. An empty seen time means now
// and empty coordinates mean 0.
func ParseSighting(description, seen, lat, lon, photo string) (sighting.Sighting, error) {
	if description == "" {
		return sighting.Sighting{}, errors.New("description is required")
	}
	s := sighting.Sighting{Description: description, Photo: photo, SeenAt: time.Now()}
	if seen != "" {
		t, err := time.ParseInLocation(seenLayout, seen, time.Local)
		if err != nil {
			return s, errors.New("seen at must look like " + seenLayout)
		}
		s.SeenAt = t
	}
	var err error
	if s.Geolocation.Latitude, err = coord(lat, 90); err != nil {
		return s, errors.New("latitude " + err.Error())
	}
	if s.Geolocation.Longitude, err = coord(lon, 180); err != nil {
		return s, errors.New("longitude " + err.Error())
	}
	return s, nil
}

func coord(v string, limit float64) (float64, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.New("is not a number")
	}
	if f < -limit || f > limit {
		return 0, errors.New("is out of range")
	}
	return f, nil
}
