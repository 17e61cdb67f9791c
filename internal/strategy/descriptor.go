package strategy

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"lpBacktest/internal/model"
	"lpBacktest/internal/options"
)

// Strategy describes when to open LP positions on a pool and how to size
// them. Descriptor files are YAML or JSON lists of these.
type Strategy struct {
	StrategyName string               `json:"strategyName" yaml:"strategyName" validate:"required"`
	PriceRange   model.RangeSpec      `json:"priceRange" yaml:"priceRange"`
	Rebalance    *model.RebalanceSpec `json:"rebalance,omitempty" yaml:"rebalance,omitempty"`
	// AmountUSD falls back to the configured default deposit when zero.
	AmountUSD        float64 `json:"amountUSD" yaml:"amountUSD" validate:"gte=0"`
	PositionOpenDays float64 `json:"positionOpenDays" yaml:"positionOpenDays" default:"1" validate:"gt=0"`
	HoursCheckOpen   []int   `json:"hoursCheckOpen" yaml:"hoursCheckOpen" default:"[0]" validate:"dive,gte=0,lte=23"`
	HoursCheckClose  []int   `json:"hoursCheckClose" yaml:"hoursCheckClose" default:"[0]" validate:"dive,gte=0,lte=23"`
	OnePosPerPool    bool    `json:"onePosPerPool" yaml:"onePosPerPool"`

	VolatilityThreshold float64              `json:"volatilityThreshold" yaml:"volatilityThreshold"`
	VolatilitySymbol    string               `json:"volatilitySymbol" yaml:"volatilitySymbol" default:"EVIV"`
	VolatilityKind      model.VolatilityKind `json:"volatilityKind" yaml:"volatilityKind" default:"implied" validate:"oneof=implied realized"`

	Trading []model.TradingStrategy `json:"trading,omitempty" yaml:"trading,omitempty" validate:"dive"`
	Options options.Params          `json:"options" yaml:"options"`
}

var validate = validator.New()

// Prepare fills defaults and validates s.
func (s *Strategy) Prepare() error {
	if err := defaults.Set(s); err != nil {
		return fmt.Errorf("strategy defaults: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("strategy %q: %w", s.StrategyName, err)
	}
	r := s.PriceRange
	if !r.FullRange && !r.Fixed() && r.UptickPercent == 0 && r.DowntickPercent == 0 {
		return fmt.Errorf("strategy %q: priceRange needs fullRange, priceLow/priceHigh or a percentage band", s.StrategyName)
	}
	if r.Fixed() && !(r.Low > 0 && r.High > r.Low) {
		return fmt.Errorf("strategy %q: priceLow must be positive and below priceHigh", s.StrategyName)
	}
	return nil
}

// PositionOpen is PositionOpenDays as a duration.
func (s Strategy) PositionOpen() time.Duration {
	return time.Duration(s.PositionOpenDays * float64(24*time.Hour))
}

// PositionSpec builds the simulation input of one scheduled window.
func (s Strategy) PositionSpec(pool model.Pool, id int, w Window) model.PositionSpec {
	return model.PositionSpec{
		LPPositionID: id,
		Protocol:     pool.Protocol,
		PoolAddress:  pool.Address,
		OpenTime:     w.Open,
		CloseTime:    w.Close,
		Range:        s.PriceRange,
		AmountUSD:    s.AmountUSD,
		Rebalance:    s.Rebalance,
		Trading:      s.Trading,
	}
}

// Parse decodes a list of strategies, or a single strategy object, from
// YAML or JSON and prepares each one.
func Parse(data []byte) ([]Strategy, error) {
	var list []Strategy
	if err := yaml.Unmarshal(data, &list); err != nil {
		var single Strategy
		if errSingle := yaml.Unmarshal(data, &single); errSingle != nil {
			return nil, fmt.Errorf("parse strategies: %w", err)
		}
		list = []Strategy{single}
	}
	if len(list) == 0 {
		return nil, errors.New("no strategies defined")
	}

	seen := make(map[string]struct{}, len(list))
	for i := range list {
		if err := list[i].Prepare(); err != nil {
			return nil, err
		}
		if _, dup := seen[list[i].StrategyName]; dup {
			return nil, fmt.Errorf("duplicate strategy name %q", list[i].StrategyName)
		}
		seen[list[i].StrategyName] = struct{}{}
	}
	return list, nil
}

// LoadFile reads and prepares a strategy descriptor file.
func LoadFile(path string) ([]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies: %w", err)
	}
	return Parse(data)
}
