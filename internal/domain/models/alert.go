package models

import "time"

type AlertType string

const (
	AlertZScore AlertType = "zscore"
	AlertPrice  AlertType = "price"
	AlertSpread AlertType = "spread"
	AlertVolume AlertType = "volume"
)

type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
	ConditionCross AlertCondition = "cross"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a user-defined threshold rule. Triggered and LastTriggered are
// owned by the evaluator.
type Alert struct {
	ID            string         `json:"id"`
	Type          AlertType      `json:"type"`
	Symbol        string         `json:"symbol"`
	Condition     AlertCondition `json:"condition"`
	Value         float64        `json:"value"`
	Enabled       bool           `json:"enabled"`
	Triggered     bool           `json:"triggered"`
	LastTriggered *time.Time     `json:"lastTriggered,omitempty"`
}

type AlertNotification struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alertId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
}

// MetricValues is the input of one alert evaluation pass.
type MetricValues struct {
	ZScore *float64
	Spread *float64
	Prices map[string]float64
	Volume map[string]float64
}
