package models

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"06:30", 390, false},
		{"23:59", 1439, false},
		{"7:05", 425, false},
		{"12", 720, false},
		{"24:00", 0, true},
		{"10:60", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(390); got != "06:30" {
		t.Errorf("FormatClock(390) = %s, want 06:30", got)
	}
	if got := FormatClock(0); got != "00:00" {
		t.Errorf("FormatClock(0) = %s, want 00:00", got)
	}
}

func TestTherapyProfile_CloneIsDeep(t *testing.T) {
	p := &TherapyProfile{
		Basal: []TherapySegment{{Start: "00:00", Value: 0.8}},
		DIA:   4,
	}
	c := p.Clone()
	c.Basal[0].Value = 1.2

	if p.Basal[0].Value != 0.8 {
		t.Errorf("modifying clone changed original basal to %v", p.Basal[0].Value)
	}
	if c.CarbRatio != nil {
		t.Error("nil segment lists should stay nil")
	}
}
