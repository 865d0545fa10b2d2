// Package nightscout provides a client for interacting with the Nightscout API
package nightscout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

// ErrNoProfile is returned when the server has no usable profile document
var ErrNoProfile = errors.New("no profile found on server")

// profileDocument is one entry of /api/v1/profile.json
type profileDocument struct {
	ID             string                  `json:"_id"`
	DefaultProfile string                  `json:"defaultProfile"`
	StartDate      string                  `json:"startDate"`
	Units          string                  `json:"units"`
	Store          map[string]profileStore `json:"store"`
}

// profileStore is a named profile inside a document
type profileStore struct {
	DIA        flexFloat        `json:"dia"`
	Units      string           `json:"units"`
	Timezone   string           `json:"timezone"`
	Basal      []profileSegment `json:"basal"`
	CarbRatio  []profileSegment `json:"carbratio"`
	Sens       []profileSegment `json:"sens"`
	TargetLow  []profileSegment `json:"target_low"`
	TargetHigh []profileSegment `json:"target_high"`
}

type profileSegment struct {
	Time  string    `json:"time"`
	Value flexFloat `json:"value"`
}

// flexFloat accepts both JSON numbers and numeric strings; Nightscout stores either
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// activeProfile picks the default store of the first (newest) document and converts it
func activeProfile(docs []profileDocument) (*models.TherapyProfile, error) {
	if len(docs) == 0 {
		return nil, ErrNoProfile
	}

	doc := docs[0]
	name := doc.DefaultProfile
	store, ok := doc.Store[name]
	if !ok {
		if len(doc.Store) != 1 {
			return nil, fmt.Errorf("%w: default profile %q missing from store", ErrNoProfile, name)
		}
		for _, only := range doc.Store {
			store = only
		}
	}

	units := store.Units
	if units == "" {
		units = doc.Units
	}
	return convertStore(store, units), nil
}

// isMmol reports whether the profile units are mmol/L
func isMmol(units string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(units)), "mmol")
}

// convertStore maps the wire store onto a therapy profile.
// Glucose-denominated lists (sensitivity, targets) are converted to mg/dL.
func convertStore(store profileStore, units string) *models.TherapyProfile {
	glucose := func(v float64) float64 { return v }
	if isMmol(units) {
		glucose = func(v float64) float64 { return roundTo(models.ToMgdl(v), 1) }
	}

	return &models.TherapyProfile{
		Basal:       convertSegments(store.Basal, nil),
		CarbRatio:   convertSegments(store.CarbRatio, nil),
		Sensitivity: convertSegments(store.Sens, glucose),
		TargetLow:   convertSegments(store.TargetLow, glucose),
		TargetHigh:  convertSegments(store.TargetHigh, glucose),
		DIA:         float64(store.DIA),
		Units:       "mg/dl",
	}
}

func convertSegments(in []profileSegment, conv func(float64) float64) []models.TherapySegment {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.TherapySegment, 0, len(in))
	for _, s := range in {
		v := float64(s.Value)
		if conv != nil {
			v = conv(v)
		}
		out = append(out, models.TherapySegment{Start: s.Time, Value: v})
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
