package models

import (
	"encoding/json"
	"math"
	"time"
)

type RegressionResult struct {
	HedgeRatio  float64   `json:"hedgeRatio"`
	Intercept   float64   `json:"intercept"`
	RSquared    float64   `json:"rSquared"`
	Correlation float64   `json:"correlation"`
	Residuals   []float64 `json:"residuals"`
}

type SpreadStats struct {
	Spread        float64 `json:"spread"`
	SpreadPercent float64 `json:"spreadPercent"`
	ZScore        float64 `json:"zScore"`
	Mean          float64 `json:"mean"`
	Std           float64 `json:"std"`
	// HalfLife is +Inf when no mean reversion is detected and encodes as null.
	HalfLife float64 `json:"halfLife"`
}

func (s SpreadStats) MarshalJSON() ([]byte, error) {
	type plain SpreadStats
	out := struct {
		plain
		HalfLife *float64 `json:"halfLife"`
	}{plain: plain(s)}
	if !math.IsInf(s.HalfLife, 0) && !math.IsNaN(s.HalfLife) {
		hl := s.HalfLife
		out.HalfLife = &hl
	}
	return json.Marshal(out)
}

func (s *SpreadStats) UnmarshalJSON(b []byte) error {
	type plain SpreadStats
	in := struct {
		*plain
		HalfLife *float64 `json:"halfLife"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	s.HalfLife = math.Inf(1)
	if in.HalfLife != nil {
		s.HalfLife = *in.HalfLife
	}
	return nil
}

type CriticalValues struct {
	OnePercent  float64 `json:"1%"`
	FivePercent float64 `json:"5%"`
	TenPercent  float64 `json:"10%"`
}

// ADFResult is the output of the simplified unit-root test. PValue is a
// coarse step function, not a true ADF p-value.
type ADFResult struct {
	TestStatistic  float64        `json:"testStatistic"`
	PValue         float64        `json:"pValue"`
	CriticalValues CriticalValues `json:"criticalValues"`
	IsStationary   bool           `json:"isStationary"`
	Lag            int            `json:"lag"`
}

// Settings selects the analyzed pair and the analytics parameters.
type Settings struct {
	Symbols       []string `json:"symbols" validate:"min=2,dive,required"`
	Timeframe     string   `json:"timeframe" default:"1m" validate:"oneof=1s 1m 5m"`
	RollingWindow int      `json:"rollingWindow" default:"20" validate:"gte=5,lte=100"`
}

// Primary returns the first configured symbol.
func (s Settings) Primary() string {
	if len(s.Symbols) == 0 {
		return ""
	}
	return s.Symbols[0]
}

// Secondary returns the second configured symbol.
func (s Settings) Secondary() string {
	if len(s.Symbols) < 2 {
		return ""
	}
	return s.Symbols[1]
}

// Price sources for AnalyticsResult.Source.
const (
	SourceBars  = "bars"
	SourceTicks = "ticks"
)

// AnalyticsResult is one published analytics snapshot. It is replaced
// wholesale on every cycle and must not be mutated after publication.
type AnalyticsResult struct {
	Settings           Settings          `json:"settings"`
	Primary            PriceStats        `json:"primary"`
	Secondary          PriceStats        `json:"secondary"`
	Source             string            `json:"source"`
	Points             int               `json:"points"`
	Regression         *RegressionResult `json:"regression,omitempty"`
	Spread             *SpreadStats      `json:"spread,omitempty"`
	ADF                *ADFResult        `json:"adf,omitempty"`
	SpreadHistory      []float64         `json:"spreadHistory"`
	ZScoreHistory      []float64         `json:"zScoreHistory"`
	CorrelationHistory []float64         `json:"correlationHistory"`
	ComputedAt         time.Time         `json:"computedAt"`
}
