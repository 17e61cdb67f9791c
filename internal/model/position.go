package model

// RangeSpec sizes an LP price range. Exactly one mode applies: FullRange,
// fixed Low/High bounds, or an up/down percentage band around the pivot price.
type RangeSpec struct {
	FullRange       bool    `json:"fullRange" yaml:"fullRange"`
	UptickPercent   float64 `json:"uptickPercent" yaml:"uptickPercent" validate:"gte=0"`
	DowntickPercent float64 `json:"downtickPercent" yaml:"downtickPercent" validate:"gte=0,lt=100"`
	Low             float64 `json:"priceLow,omitempty" yaml:"priceLow,omitempty" validate:"gte=0"`
	High            float64 `json:"priceHigh,omitempty" yaml:"priceHigh,omitempty" validate:"gte=0"`
}

// Fixed reports whether the range uses explicit price bounds.
func (r RangeSpec) Fixed() bool {
	return !r.FullRange && (r.Low > 0 || r.High > 0)
}

// RebalanceSpec is the band around the open price that triggers a
// close-and-reopen once price leaves it.
type RebalanceSpec struct {
	UptickPercent   float64 `json:"uptickPercent" yaml:"uptickPercent" validate:"gt=0"`
	DowntickPercent float64 `json:"downtickPercent" yaml:"downtickPercent" validate:"gt=0,lt=100"`
}

// Direction is the side of a trading overlay position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// TradingStrategy configures one overlay strategy. Strategies are keyed by
// (PositionType, EntryPricePercent).
type TradingStrategy struct {
	PositionType      Direction `json:"positionType" yaml:"positionType" validate:"required,oneof=long short"`
	EntryPricePercent float64   `json:"entryPricePercent" yaml:"entryPricePercent"`
	TakeProfitPercent float64   `json:"takeProfitPercent" yaml:"takeProfitPercent" validate:"gt=0"`
	StopLossPercent   *float64  `json:"stopLossPercent,omitempty" yaml:"stopLossPercent,omitempty" validate:"omitempty,gt=0"`
	// EntryAmount overrides the LP deposit as the position notional.
	EntryAmount float64 `json:"entryAmount,omitempty" yaml:"entryAmount,omitempty" validate:"gte=0"`
}

// PositionSpec is the input of one simulation. Times are unix milliseconds.
type PositionSpec struct {
	LPPositionID int               `json:"lpPositionId"`
	Protocol     Protocol          `json:"poolType"`
	PoolAddress  string            `json:"poolAddress"`
	OpenTime     int64             `json:"openTime"`
	CloseTime    int64             `json:"closeTime"`
	Range        RangeSpec         `json:"priceRange"`
	AmountUSD    float64           `json:"amountUSD"`
	Rebalance    *RebalanceSpec    `json:"rebalance,omitempty"`
	Trading      []TradingStrategy `json:"trading,omitempty"`
}

// LPPosition is one simulated LP position. Rebalancing splits a PositionSpec
// into several of these.
type LPPosition struct {
	LPPositionID   int      `json:"lpPositionId"`
	Protocol       Protocol `json:"poolType"`
	PoolAddress    string   `json:"poolAddress"`
	OpenTimestamp  int64    `json:"openTimestamp"`
	CloseTimestamp int64    `json:"closeTimestamp"`
	OpenPrice      float64  `json:"openPrice"`
	ClosePrice     float64  `json:"closePrice"`
	PriceLow       float64  `json:"priceLow"`
	PriceHigh      float64  `json:"priceHigh"`
	AmountUSD      float64  `json:"amountUSD"`
	FeesCollected  float64  `json:"feesCollected"`
	ILPercentage   float64  `json:"ILPercentage"`
	PnLPercent     float64  `json:"pnlPercent"`
}

// CloseReason tells why an overlay position closed.
type CloseReason string

const (
	ClosedByTakeProfit  CloseReason = "takeProfit"
	ClosedByStopLoss    CloseReason = "stopLoss"
	ClosedByEndOfPeriod CloseReason = "endOfPeriod"
)

// TradingPosition is one closed overlay position.
type TradingPosition struct {
	LPPositionID   int             `json:"lpPositionId"`
	Type           Direction       `json:"type"`
	OpenTimestamp  int64           `json:"openTimestamp"`
	CloseTimestamp int64           `json:"closeTimestamp"`
	OpenPrice      float64         `json:"openPrice"`
	ClosePrice     float64         `json:"closePrice"`
	EntryAmount    float64         `json:"entryAmount"`
	PnLPercent     float64         `json:"pnlPercent"`
	PnLUSD         float64         `json:"pnlUSD"`
	ClosedBy       CloseReason     `json:"closedBy"`
	Strategy       TradingStrategy `json:"strategyConfig"`
}
