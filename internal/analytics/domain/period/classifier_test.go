package period

import (
	"testing"
	"time"
)

func defaultClassifier() *Classifier {
	return NewClassifier(2, nil, nil)
}

func TestOperationalDate_ShiftsOvernightBackward(t *testing.T) {
	c := defaultClassifier()

	// 01:30 is before the 02:00 boundary: belongs to the prior service day.
	overnight := time.Date(2023, 3, 5, 1, 30, 0, 0, time.UTC)
	if got := c.OperationalDate(overnight); !got.Equal(time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("01:30 operational date = %v, want prior day", got)
	}

	// 02:00 exactly is the first minute of the new service day.
	boundary := time.Date(2023, 3, 5, 2, 0, 0, 0, time.UTC)
	if got := c.OperationalDate(boundary); !got.Equal(time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("02:00 operational date = %v, want same day", got)
	}
}

func TestMatches_WeekdayMorningPeak(t *testing.T) {
	c := defaultClassifier()
	// Wednesday 07:00
	at := time.Date(2023, 3, 8, 7, 0, 0, 0, time.UTC)

	want := map[Variant]bool{
		VariantAll:         true,
		VariantMorningPeak: true,
		VariantEveningPeak: false,
		VariantPeak:        true,
		VariantOffPeak:     false,
	}
	for variant, expected := range want {
		if got := c.Matches(variant, at); got != expected {
			t.Fatalf("weekday 07:00 %s = %v, want %v", variant, got, expected)
		}
	}
}

func TestMatches_WeekendMorningIsOffPeak(t *testing.T) {
	c := defaultClassifier()
	// Saturday 07:00
	at := time.Date(2023, 3, 11, 7, 0, 0, 0, time.UTC)

	want := map[Variant]bool{
		VariantAll:         true,
		VariantMorningPeak: false,
		VariantEveningPeak: false,
		VariantPeak:        false,
		VariantOffPeak:     true,
	}
	for variant, expected := range want {
		if got := c.Matches(variant, at); got != expected {
			t.Fatalf("saturday 07:00 %s = %v, want %v", variant, got, expected)
		}
	}
}

func TestMatches_PeakAndOffPeakAreComplements(t *testing.T) {
	c := defaultClassifier()
	for hour := 0; hour < 24; hour++ {
		for day := 6; day <= 12; day++ { // one full week of March 2023
			at := time.Date(2023, 3, day, hour, 30, 0, 0, time.UTC)
			peak := c.Matches(VariantPeak, at)
			off := c.Matches(VariantOffPeak, at)
			if peak == off {
				t.Fatalf("%v: peak=%v offpeak=%v, want complements", at, peak, off)
			}
		}
	}
}

func TestNewClassifier_ConfiguredHourSets(t *testing.T) {
	// the shifted-basis deployment: morning {4..7}, evening {14..17}, no offset
	c := NewClassifier(0, []int{4, 5, 6, 7}, []int{14, 15, 16, 17})

	weekday := time.Date(2023, 3, 8, 5, 0, 0, 0, time.UTC)
	if !c.Matches(VariantMorningPeak, weekday) {
		t.Fatal("05:00 should be morning peak in shifted configuration")
	}
	if c.Matches(VariantMorningPeak, weekday.Add(4*time.Hour)) {
		t.Fatal("09:00 should not be morning peak in shifted configuration")
	}
	if got := c.OperationalDate(weekday); !got.Equal(time.Date(2023, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("zero offset operational date = %v", got)
	}
}

func TestLabels(t *testing.T) {
	c := defaultClassifier()
	labels := c.Labels(time.Date(2023, 3, 8, 17, 0, 0, 0, time.UTC)) // Wednesday 17:00

	want := []Variant{VariantAll, VariantEveningPeak, VariantPeak}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i, variant := range want {
		if labels[i] != variant {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
}
