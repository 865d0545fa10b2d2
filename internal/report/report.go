// Package report renders analysis runs as PNG report cards
package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Layout constants
const (
	defaultWidth          = 960
	defaultMaxSuggestions = 8
	margin                = 40.0
	lineHeight            = 26.0
	tileHeight            = 96.0
	barHeight             = 44.0
)

// Options controls the look of a report
type Options struct {
	Width          int
	Unit           string // "mg/dL" or "mmol/L"
	ColorInRange   string // Hex colors
	ColorHigh      string
	ColorLow       string
	MaxSuggestions int
}

// OptionsFromSettings builds report options from the app settings
func OptionsFromSettings(s *models.Settings) Options {
	c := s.Clone()
	return Options{
		Unit:         c.Unit,
		ColorInRange: c.ReportColorInRange,
		ColorHigh:    c.ReportColorHigh,
		ColorLow:     c.ReportColorLow,
	}
}

func colorOr(hex, fallback string) string {
	if len(hex) == 7 && hex[0] == '#' {
		return hex
	}
	return fallback
}

func (o Options) withDefaults() Options {
	o.ColorInRange = colorOr(o.ColorInRange, "#4ade80")
	o.ColorHigh = colorOr(o.ColorHigh, "#facc15")
	o.ColorLow = colorOr(o.ColorLow, "#ef4444")
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = defaultMaxSuggestions
	}
	if o.Unit == "" {
		o.Unit = "mg/dL"
	}
	return o
}

var (
	fontsOnce    sync.Once
	regularFont  *truetype.Font
	boldFont     *truetype.Font
	errFontsLoad error
)

// loadFonts parses the embedded Go fonts once
func loadFonts() error {
	fontsOnce.Do(func() {
		regularFont, errFontsLoad = truetype.Parse(goregular.TTF)
		if errFontsLoad != nil {
			return
		}
		boldFont, errFontsLoad = truetype.Parse(gobold.TTF)
	})
	return errFontsLoad
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// plainText drops runes the report font has no glyph for (emoji markers) and trims the rest
func plainText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || regularFont.Index(r) != 0 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Render draws the report card for a run and returns it PNG encoded
func Render(run *models.AnalysisRun, opts Options) ([]byte, error) {
	if run == nil || run.Result == nil {
		return nil, errors.New("no analysis result to render")
	}
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("loading fonts: %w", err)
	}
	opts = opts.withDefaults()

	width := float64(opts.Width)
	textWidth := width - 2*margin

	// Measure wrapped text first so the canvas fits it
	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face(regularFont, 16))
	suggestions := suggestionLines(run.Result, opts)
	var warnings []string
	for _, w := range run.Result.SafetyWarnings {
		warnings = append(warnings, measure.WordWrap(plainText(w), textWidth-16)...)
	}
	var review []string
	if run.Result.SensitivityReview != "" {
		review = measure.WordWrap(run.Result.SensitivityReview, textWidth)
	}

	height := margin + 90 + tileHeight + 40 + barHeight + 50 +
		lineHeight*float64(len(suggestions)+1) + 30 +
		lineHeight*float64(len(warnings)+1) + margin
	if len(review) > 0 {
		height += lineHeight * float64(len(review)+1)
	}

	dc := gg.NewContext(opts.Width, int(height))
	dc.SetRGB255(249, 250, 251)
	dc.Clear()

	y := margin
	y = drawHeader(dc, run, y)
	y = drawTiles(dc, run.Result.Metrics, opts, y, textWidth)
	y = drawRangeBar(dc, run.Result.Metrics, opts, y+40, textWidth)

	y = drawSection(dc, "Suggested adjustments", y+50)
	dc.SetFontFace(face(regularFont, 16))
	dc.SetRGB255(31, 41, 55)
	if len(suggestions) == 0 {
		dc.DrawString("No adjustments suggested.", margin, y)
		y += lineHeight
	}
	for _, line := range suggestions {
		dc.DrawString(line, margin, y)
		y += lineHeight
	}

	if len(review) > 0 {
		y += 4
		dc.SetRGB255(107, 114, 128)
		for _, line := range review {
			dc.DrawString(line, margin, y)
			y += lineHeight
		}
	}

	y = drawSection(dc, "Safety", y+30)
	dc.SetFontFace(face(regularFont, 16))
	dc.SetRGB255(153, 27, 27)
	for _, line := range warnings {
		dc.DrawString(line, margin+16, y)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes rendered PNG data to path, creating parent directories
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// FileName returns the default report file name for a run
func FileName(run *models.AnalysisRun) string {
	return fmt.Sprintf("therapy-%s-%s.png", run.CreatedAt.UTC().Format("20060102-1504"), run.ShortID())
}

func drawHeader(dc *gg.Context, run *models.AnalysisRun, y float64) float64 {
	dc.SetFontFace(face(boldFont, 30))
	dc.SetRGB255(17, 24, 39)
	dc.DrawString("Therapy analysis", margin, y+28)

	dc.SetFontFace(face(regularFont, 16))
	dc.SetRGB255(107, 114, 128)
	sub := fmt.Sprintf("%d days  |  %d readings  |  %s  |  data quality %s",
		run.AnalysisDays, run.ReadingCount, run.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"),
		run.Result.Metrics.DataQuality)
	dc.DrawString(sub, margin, y+60)
	return y + 90
}

type tile struct {
	label string
	value string
	hex   string
}

func drawTiles(dc *gg.Context, m models.GlycemicMetrics, opts Options, y, textWidth float64) float64 {
	mean := fmt.Sprintf("%.0f", m.MeanGlucose)
	if opts.Unit == "mmol/L" {
		mean = fmt.Sprintf("%.1f", models.ToMmol(m.MeanGlucose))
	}

	tiles := []tile{
		{"In range", fmt.Sprintf("%.0f%%", m.TimeInRangePct), opts.ColorInRange},
		{"Below", fmt.Sprintf("%.0f%%", m.TimeBelowPct), opts.ColorLow},
		{"Above", fmt.Sprintf("%.0f%%", m.TimeAbovePct), opts.ColorHigh},
		{"Average " + opts.Unit, mean, "#9ca3af"},
		{"Variability", fmt.Sprintf("%.0f%%", m.CoefficientOfVariationPct), "#9ca3af"},
	}

	const gap = 12.0
	w := (textWidth - gap*float64(len(tiles)-1)) / float64(len(tiles))
	for i, t := range tiles {
		x := margin + float64(i)*(w+gap)

		dc.SetRGB255(255, 255, 255)
		dc.DrawRoundedRectangle(x, y, w, tileHeight, 10)
		dc.Fill()

		r, g, b := parseHexColor(t.hex)
		dc.SetRGB255(int(r), int(g), int(b))
		dc.DrawRoundedRectangle(x, y, 6, tileHeight, 3)
		dc.Fill()

		dc.SetFontFace(face(boldFont, 30))
		dc.SetRGB255(17, 24, 39)
		dc.DrawStringAnchored(t.value, x+w/2, y+40, 0.5, 0.5)

		dc.SetFontFace(face(regularFont, 14))
		dc.SetRGB255(107, 114, 128)
		dc.DrawStringAnchored(t.label, x+w/2, y+74, 0.5, 0.5)
	}
	return y + tileHeight
}

// drawRangeBar draws the stacked below / in range / above bar
func drawRangeBar(dc *gg.Context, m models.GlycemicMetrics, opts Options, y, textWidth float64) float64 {
	total := m.TimeBelowPct + m.TimeInRangePct + m.TimeAbovePct
	if total <= 0 {
		total = 100
	}

	parts := []struct {
		pct float64
		hex string
	}{
		{m.TimeBelowPct, opts.ColorLow},
		{m.TimeInRangePct, opts.ColorInRange},
		{m.TimeAbovePct, opts.ColorHigh},
	}

	dc.SetFontFace(face(boldFont, 15))
	x := margin
	for _, p := range parts {
		w := textWidth * p.pct / total
		if w <= 0 {
			continue
		}
		r, g, b := parseHexColor(p.hex)
		dc.SetRGB255(int(r), int(g), int(b))
		dc.DrawRectangle(x, y, w, barHeight)
		dc.Fill()

		if w > 44 {
			dc.SetColor(textColor(r, g, b))
			dc.DrawStringAnchored(fmt.Sprintf("%.0f%%", p.pct), x+w/2, y+barHeight/2, 0.5, 0.35)
		}
		x += w
	}
	return y + barHeight
}

func drawSection(dc *gg.Context, title string, y float64) float64 {
	dc.SetFontFace(face(boldFont, 20))
	dc.SetRGB255(17, 24, 39)
	dc.DrawString(title, margin, y)
	return y + lineHeight + 6
}

// suggestionLines formats the highest-priority suggestions, one line each
func suggestionLines(res *models.AnalysisResult, opts Options) []string {
	all := res.AllAdjustments()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })
	if len(all) > opts.MaxSuggestions {
		all = all[:opts.MaxSuggestions]
	}

	lines := make([]string, 0, len(all))
	for _, s := range all {
		lines = append(lines, fmt.Sprintf("[%s] %s %s: %s -> %s (%+.1f%%)",
			strings.ToUpper(s.Priority.String()), s.Category, s.TimeSlot,
			formatValue(s.CurrentValue), formatValue(s.SuggestedValue), s.PercentageDelta))
	}
	return lines
}

func formatValue(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// textColor picks black or white text for the given background
func textColor(r, g, b byte) color.Color {
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if brightness > 128 {
		return color.Black
	}
	return color.White
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}
