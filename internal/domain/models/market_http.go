package models

// Requests for HTTP endpoints. Defined in domain for consistency and reuse.

type TicksRequest struct {
	Symbol string `param:"symbol" validate:"required"`
	Limit  int    `query:"limit" default:"1000" validate:"gte=1,lte=10000"`
	Format string `query:"format" validate:"omitempty,oneof=json csv"`
}

type BarsRequest struct {
	Symbol    string `param:"symbol" validate:"required"`
	Timeframe string `param:"tf" validate:"oneof=1s 1m 5m"`
	Limit     int    `query:"limit" default:"500" validate:"gte=1,lte=500"`
	Format    string `query:"format" validate:"omitempty,oneof=json csv"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required"`
}

type CreateAlertRequest struct {
	Type      string  `json:"type" validate:"required,oneof=zscore price spread volume"`
	Symbol    string  `json:"symbol" validate:"required_if=Type price,required_if=Type volume"`
	Condition string  `json:"condition" validate:"required,oneof=above below cross"`
	Value     float64 `json:"value"`
	Enabled   *bool   `json:"enabled"`
}

type AlertIDRequest struct {
	ID string `param:"id" validate:"required"`
}

type LogsRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SetAlertEnabledRequest struct {
	ID      string `param:"id" validate:"required"`
	Enabled *bool  `json:"enabled" validate:"required"`
}
