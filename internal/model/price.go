package model

// SourceName identifies the upstream data source in payloads and metadata.
const SourceName = "EODHD_BULK_LAST_DAY"

// PriceRow is a single normalized daily observation for one ticker.
// Rows are produced once per ingestion cycle and never mutated.
type PriceRow struct {
	MarketCode    string
	MarketName    string
	Ticker        string
	Name          string
	Currency      string
	Close         float64
	Volume        int64
	ChangePercent *float64 // same-day change, absent when the source has none
	AsOfDate      string   // ISO calendar date, e.g. "2024-06-10"
}

// Reference is a resolved historical close used as the denominator of a
// percent-change computation. AsOfDate may be empty for legacy milestone
// rows written before the column existed.
type Reference struct {
	Close    float64
	AsOfDate string
}

// Timeframe is one of the four comparison horizons.
type Timeframe string

const (
	Timeframe1D Timeframe = "1D"
	Timeframe5D Timeframe = "5D"
	Timeframe1M Timeframe = "1M"
	Timeframe1Y Timeframe = "1Y"
)

// Timeframes lists all horizons in payload order.
var Timeframes = []Timeframe{Timeframe1D, Timeframe5D, Timeframe1M, Timeframe1Y}

// LookbackDays returns the calendar-day lookback for a timeframe.
// The 1D horizon has no lookback: its change comes from the source feed.
func (t Timeframe) LookbackDays() int {
	switch t {
	case Timeframe5D:
		return 7
	case Timeframe1M:
		return 30
	case Timeframe1Y:
		return 365
	}
	return 0
}

// Slot names a milestone reference bucket. Slots map 1:1 to the multi-day
// timeframes and are replaced wholesale on a fixed cadence.
type Slot string

const (
	Slot7d   Slot = "7d"
	Slot30d  Slot = "30d"
	Slot365d Slot = "365d"
)

// Slots lists all milestone slots.
var Slots = []Slot{Slot7d, Slot30d, Slot365d}

// TargetDays returns the refresh age of a slot in calendar days.
func (s Slot) TargetDays() int {
	switch s {
	case Slot7d:
		return 7
	case Slot30d:
		return 30
	case Slot365d:
		return 365
	}
	return 0
}

// Slot returns the milestone slot backing a timeframe, or "" for 1D.
func (t Timeframe) Slot() Slot {
	switch t {
	case Timeframe5D:
		return Slot7d
	case Timeframe1M:
		return Slot30d
	case Timeframe1Y:
		return Slot365d
	}
	return ""
}
