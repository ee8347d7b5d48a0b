// Package period classifies observation timestamps into operational dates and
// time-of-day variants used to fan aggregates out.
package period

import "time"

// Variant names a time-of-day/day-of-week filter applied before aggregation.
type Variant string

const (
	VariantAll         Variant = "all"
	VariantMorningPeak Variant = "morning_peak"
	VariantEveningPeak Variant = "evening_peak"
	VariantPeak        Variant = "peak"
	VariantOffPeak     Variant = "offpeak"
)

// Variants returns all variants in their canonical order.
func Variants() []Variant {
	return []Variant{VariantAll, VariantMorningPeak, VariantEveningPeak, VariantPeak, VariantOffPeak}
}

// IsValid checks if the variant is one of the supported values.
func (v Variant) IsValid() bool {
	switch v {
	case VariantAll, VariantMorningPeak, VariantEveningPeak, VariantPeak, VariantOffPeak:
		return true
	default:
		return false
	}
}

// Classifier maps timestamps to operational dates and variant membership.
// The peak hour sets and the operational-day offset have disagreed between
// deployments, so all three are injected configuration rather than constants.
type Classifier struct {
	dayOffset    time.Duration
	morningHours map[int]struct{}
	eveningHours map[int]struct{}
}

// NewClassifier constructs a classifier. Defaults when the hour sets are
// empty: morning {6,7,8,9}, evening {16,17,18,19}, day offset 2h.
func NewClassifier(dayOffsetHours int, morningHours, eveningHours []int) *Classifier {
	if dayOffsetHours < 0 {
		dayOffsetHours = 2
	}
	if len(morningHours) == 0 {
		morningHours = []int{6, 7, 8, 9}
	}
	if len(eveningHours) == 0 {
		eveningHours = []int{16, 17, 18, 19}
	}
	return &Classifier{
		dayOffset:    time.Duration(dayOffsetHours) * time.Hour,
		morningHours: hourSet(morningHours),
		eveningHours: hourSet(eveningHours),
	}
}

// OperationalDate returns the midnight of the operational day the timestamp
// belongs to. Shifting backward attributes pre-boundary overnight activity
// to the prior service day instead of splitting it across two dates.
func (c *Classifier) OperationalDate(t time.Time) time.Time {
	shifted := t.Add(-c.dayOffset)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, t.Location())
}

// Matches reports whether the timestamp belongs to the variant. Variants are
// not exclusive: a weekday 07:00 reading is in "all", "morning_peak", and
// "peak" at once. "offpeak" is the exact complement of "peak" and includes
// every weekend hour.
func (c *Classifier) Matches(variant Variant, t time.Time) bool {
	switch variant {
	case VariantAll:
		return true
	case VariantMorningPeak:
		return c.morningPeak(t)
	case VariantEveningPeak:
		return c.eveningPeak(t)
	case VariantPeak:
		return c.morningPeak(t) || c.eveningPeak(t)
	case VariantOffPeak:
		return !c.morningPeak(t) && !c.eveningPeak(t)
	default:
		return false
	}
}

// Labels returns every variant the timestamp belongs to.
func (c *Classifier) Labels(t time.Time) []Variant {
	var labels []Variant
	for _, variant := range Variants() {
		if c.Matches(variant, t) {
			labels = append(labels, variant)
		}
	}
	return labels
}

func (c *Classifier) morningPeak(t time.Time) bool {
	if isWeekend(t) {
		return false
	}
	_, ok := c.morningHours[t.Hour()]
	return ok
}

func (c *Classifier) eveningPeak(t time.Time) bool {
	if isWeekend(t) {
		return false
	}
	_, ok := c.eveningHours[t.Hour()]
	return ok
}

func isWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}

func hourSet(hours []int) map[int]struct{} {
	set := make(map[int]struct{}, len(hours))
	for _, hour := range hours {
		set[hour] = struct{}{}
	}
	return set
}
