// Package feed adapts upstream trade streams into normalized ticks.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"PairFlow/internal/domain/models"
	"PairFlow/pkg/util"
)

var (
	ErrMalformed   = errors.New("feed: malformed message")
	ErrInvalidTick = errors.New("feed: invalid tick")
)

// number accepts a JSON number or a numeric string.
type number struct {
	v   float64
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		n.v, n.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.v, n.set = v, true
	return nil
}

// stamp accepts epoch milliseconds as a number or string, or an ISO-8601 string.
type stamp struct {
	ms  int64
	set bool
}

func (s *stamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		ms, ok := util.ParseMillis(str)
		if !ok {
			return fmt.Errorf("timestamp %q", str)
		}
		s.ms, s.set = ms, true
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	s.ms, s.set = int64(f), true
	return nil
}

// frame covers every upstream shape: the relay tick, the exchange trade event
// and the combined-stream envelope. encoding/json falls back to
// case-insensitive key matching, so "e"/"E" and "t"/"T" both need a field.
type frame struct {
	// combined-stream envelope
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`

	// exchange trade event
	Event     string          `json:"e"`
	S         string          `json:"s"`
	TradeID   json.RawMessage `json:"t"`
	TradeTime stamp           `json:"T"`
	EventTime stamp           `json:"E"`
	P         number          `json:"p"`
	Q         number          `json:"q"`

	// relay tick
	Symbol string `json:"symbol"`
	TS     stamp  `json:"ts"`
	Price  number `json:"price"`
	Size   number `json:"size"`

	// subscription acks
	Result json.RawMessage `json:"result"`
	ID     json.RawMessage `json:"id"`
}

// Normalize decodes one websocket or Kafka message into ticks. Control frames
// such as subscription acks and non-trade events yield no ticks and no error.
// A JSON array is treated as a batch.
func Normalize(raw []byte) ([]models.Tick, error) {
	return normalize(raw, "")
}

func normalize(raw []byte, fallback string) ([]models.Tick, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out := make([]models.Tick, 0, len(batch))
		for _, item := range batch {
			ticks, err := normalize(item, fallback)
			if err != nil {
				return nil, err
			}
			out = append(out, ticks...)
		}
		return out, nil
	}

	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(f.Data) > 0 {
		// the envelope stream name is the fallback symbol
		return normalize(f.Data, streamSymbol(f.Stream))
	}
	if f.S == "" {
		f.S = fallback
	}

	switch {
	case f.Event != "":
		if f.Event != "trade" {
			return nil, nil
		}
		return one(exchangeTick(f))
	case f.Symbol != "" || f.Price.set:
		return one(relayTick(f))
	case len(f.Result) > 0 || len(f.ID) > 0:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown shape", ErrMalformed)
	}
}

func one(t models.Tick, err error) ([]models.Tick, error) {
	if err != nil {
		return nil, err
	}
	return []models.Tick{t}, nil
}

func exchangeTick(f frame) (models.Tick, error) {
	ts := f.TradeTime
	if !ts.set || ts.ms == 0 {
		ts = f.EventTime
	}
	if !f.P.set || !ts.set {
		return models.Tick{}, fmt.Errorf("%w: trade event missing price or time", ErrMalformed)
	}
	return Validate(models.Tick{Symbol: f.S, Timestamp: ts.ms, Price: f.P.v, Size: f.Q.v})
}

func relayTick(f frame) (models.Tick, error) {
	if !f.Price.set || !f.TS.set {
		return models.Tick{}, fmt.Errorf("%w: relay tick missing price or ts", ErrMalformed)
	}
	return Validate(models.Tick{Symbol: f.Symbol, Timestamp: f.TS.ms, Price: f.Price.v, Size: f.Size.v})
}

// Validate lowercases the symbol and checks price > 0, size >= 0 and a
// positive timestamp.
func Validate(t models.Tick) (models.Tick, error) {
	t.Symbol = strings.ToLower(strings.TrimSpace(t.Symbol))
	switch {
	case t.Symbol == "":
		return t, fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	case !(t.Price > 0) || math.IsInf(t.Price, 0):
		return t, fmt.Errorf("%w: price %v", ErrInvalidTick, t.Price)
	case t.Size < 0 || math.IsNaN(t.Size) || math.IsInf(t.Size, 0):
		return t, fmt.Errorf("%w: size %v", ErrInvalidTick, t.Size)
	case t.Timestamp <= 0:
		return t, fmt.Errorf("%w: timestamp %d", ErrInvalidTick, t.Timestamp)
	}
	return t, nil
}

func streamSymbol(stream string) string {
	sym, _, _ := strings.Cut(stream, "@")
	return strings.ToLower(sym)
}
