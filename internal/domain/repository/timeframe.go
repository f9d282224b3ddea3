package repository

// Timeframe is a bar resolution.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
)

var timeframeWidths = map[Timeframe]int64{
	TF1s: 1_000,
	TF1m: 60_000,
	TF5m: 300_000,
}

// AllTimeframes lists every aggregated timeframe, narrowest first.
func AllTimeframes() []Timeframe { return []Timeframe{TF1s, TF1m, TF5m} }

// WidthMillis is the bucket width, 0 for an unsupported timeframe.
func (tf Timeframe) WidthMillis() int64 { return timeframeWidths[tf] }

// Valid reports whether bars are kept for tf.
func (tf Timeframe) Valid() bool { return tf.WidthMillis() > 0 }

// NormalizeTimeframe maps unknown or empty input to 1m.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); tf.Valid() {
		return tf
	}
	return TF1m
}
