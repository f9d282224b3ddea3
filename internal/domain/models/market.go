package models

// Tick is one normalized trade event. Timestamp is epoch milliseconds taken
// from the trade itself, not from arrival time.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"ts"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
}

// Bar is a closed OHLC bar. BucketStart is epoch ms aligned to the timeframe width.
type Bar struct {
	Symbol      string  `json:"symbol"`
	Timeframe   string  `json:"timeframe"`
	BucketStart int64   `json:"timestamp"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	Trades      int     `json:"trades"`
}

// PriceStats summarizes the tick window of one symbol.
type PriceStats struct {
	Symbol        string  `json:"symbol"`
	LastPrice     float64 `json:"lastPrice"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	VWAP          float64 `json:"vwap"`
	Trades        int     `json:"trades"`
}

// FeedStatus tracks the upstream connection for one symbol.
type FeedStatus struct {
	Symbol       string `json:"symbol"`
	Connected    bool   `json:"connected"`
	LastMessage  int64  `json:"lastMessage,omitempty"`
	MessageCount int64  `json:"messageCount"`
	Error        string `json:"error,omitempty"`
}
