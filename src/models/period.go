package models

import (
	"time"

	"market-pipeline/src/helpers"
)

// MPeriod is a heatmap look-back period label.
type MPeriod string

const (
	Period1Week   MPeriod = "1week"
	Period1Month  MPeriod = "1month"
	Period3Months MPeriod = "3months"
	Period6Months MPeriod = "6months"
)

type periodSpec struct {
	lookback time.Duration
	expiry   time.Duration
}

var periodTable = map[MPeriod]periodSpec{
	Period1Week:   {lookback: 7 * 24 * time.Hour, expiry: time.Hour},
	Period1Month:  {lookback: 30 * 24 * time.Hour, expiry: 24 * time.Hour},
	Period3Months: {lookback: 90 * 24 * time.Hour, expiry: 24 * time.Hour},
	Period6Months: {lookback: 180 * 24 * time.Hour, expiry: 24 * time.Hour},
}

// AllPeriods lists the supported periods, shortest first.
func AllPeriods() []MPeriod {
	return []MPeriod{Period1Week, Period1Month, Period3Months, Period6Months}
}

// -----------------------------------------------------------------------------

// ParsePeriod converts a label into an MPeriod. Unknown labels are rejected.
func ParsePeriod(label string) (MPeriod, error) {
	p := MPeriod(label)
	if _, ok := periodTable[p]; !ok {
		return "", &helpers.InvalidPeriodError{Period: label}
	}
	return p, nil
}

// -----------------------------------------------------------------------------

// Valid reports whether p is one of the supported periods.
func (p MPeriod) Valid() bool {
	_, ok := periodTable[p]
	return ok
}

// Lookback is how far back the heatmap history reaches. Zero for an invalid period.
func (p MPeriod) Lookback() time.Duration {
	return periodTable[p].lookback
}

// Expiry is how long a cached range for this period stays fresh. Zero for an invalid period.
func (p MPeriod) Expiry() time.Duration {
	return periodTable[p].expiry
}
