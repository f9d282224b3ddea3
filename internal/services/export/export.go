// Package export formats tick and bar windows for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"PairFlow/internal/domain/models"
	"PairFlow/pkg/util"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

var (
	tickHeader = []string{"timestamp", "symbol", "price", "size"}
	barHeader  = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume", "trades"}
)

type tickRecord struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
}

type barRecord struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int     `json:"trades"`
}

// FormatTime renders epoch ms as RFC 3339 UTC with milliseconds.
func FormatTime(ms int64) string {
	return util.FormatMillis(ms)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ticks writes ticks in the requested format.
func Ticks(w io.Writer, f Format, ticks []models.Tick) error {
	if f == FormatCSV {
		return TicksCSV(w, ticks)
	}
	return TicksJSON(w, ticks)
}

// Bars writes bars in the requested format.
func Bars(w io.Writer, f Format, bars []models.Bar) error {
	if f == FormatCSV {
		return BarsCSV(w, bars)
	}
	return BarsJSON(w, bars)
}

// TicksJSON writes a pretty-printed JSON array.
func TicksJSON(w io.Writer, ticks []models.Tick) error {
	recs := make([]tickRecord, len(ticks))
	for i, t := range ticks {
		recs[i] = tickRecord{Timestamp: FormatTime(t.Timestamp), Symbol: t.Symbol, Price: t.Price, Size: t.Size}
	}
	return writeJSON(w, recs)
}

// BarsJSON writes a pretty-printed JSON array.
func BarsJSON(w io.Writer, bars []models.Bar) error {
	recs := make([]barRecord, len(bars))
	for i, b := range bars {
		recs[i] = barRecord{
			Timestamp: FormatTime(b.BucketStart),
			Symbol:    b.Symbol,
			Timeframe: b.Timeframe,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Trades:    b.Trades,
		}
	}
	return writeJSON(w, recs)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// TicksCSV writes a header row followed by one row per tick.
func TicksCSV(w io.Writer, ticks []models.Tick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tickHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range ticks {
		row := []string{FormatTime(t.Timestamp), t.Symbol, formatFloat(t.Price), formatFloat(t.Size)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BarsCSV writes a header row followed by one row per bar.
func BarsCSV(w io.Writer, bars []models.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range bars {
		row := []string{
			FormatTime(b.BucketStart), b.Symbol,
			formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low), formatFloat(b.Close),
			formatFloat(b.Volume), strconv.Itoa(b.Trades),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName builds the download name, e.g. btcusdt_ticks_20240101T000000Z.csv.
func FileName(symbol, kind string, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", symbol, kind, now.UTC().Format("20060102T150405Z"), f)
}
