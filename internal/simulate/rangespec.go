package simulate

import (
	"fmt"

	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

// PriceRange is an inclusive [Low, High] price band.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price lies within the band.
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Low && price <= r.High
}

func (r PriceRange) validate() error {
	if !(r.Low > 0) || !(r.High > r.Low) {
		return fmt.Errorf("invalid price range [%v, %v]", r.Low, r.High)
	}
	return nil
}

// rangeRule sizes a range around a pivot price. It is applied at open and
// again at every rebalance.
type rangeRule struct {
	full     bool
	up, down float64
	min, max float64
}

func newRangeRule(spec model.RangeSpec, openPrice float64, decimals0, decimals1 int32) (rangeRule, error) {
	switch {
	case spec.FullRange:
		return rangeRule{
			full: true,
			min:  v3math.PriceMin(decimals0, decimals1).InexactFloat64(),
			max:  v3math.PriceMax(decimals0, decimals1).InexactFloat64(),
		}, nil
	case spec.Fixed():
		if !(openPrice > 0) {
			return rangeRule{}, fmt.Errorf("open price must be positive")
		}
		if err := (PriceRange{Low: spec.Low, High: spec.High}).validate(); err != nil {
			return rangeRule{}, err
		}
		// fixed bounds keep their shape relative to the pivot on rebalance
		return rangeRule{
			up:   (spec.High/openPrice - 1) * 100,
			down: (1 - spec.Low/openPrice) * 100,
		}, nil
	default:
		if spec.DowntickPercent >= 100 || spec.DowntickPercent < 0 || spec.UptickPercent < 0 {
			return rangeRule{}, fmt.Errorf("invalid tick percentages up=%v down=%v", spec.UptickPercent, spec.DowntickPercent)
		}
		if spec.UptickPercent == 0 && spec.DowntickPercent == 0 {
			return rangeRule{}, fmt.Errorf("price range is empty")
		}
		return rangeRule{up: spec.UptickPercent, down: spec.DowntickPercent}, nil
	}
}

func (r rangeRule) around(pivot float64) (PriceRange, error) {
	var out PriceRange
	if r.full {
		out = PriceRange{Low: r.min, High: r.max}
	} else {
		out = PriceRange{Low: pivot * (1 - r.down/100), High: pivot * (1 + r.up/100)}
	}
	if err := out.validate(); err != nil {
		return PriceRange{}, err
	}
	return out, nil
}

// DeriveRange returns the range a position opened at pivot would use.
func DeriveRange(spec model.RangeSpec, pivot float64, decimals0, decimals1 int32) (PriceRange, error) {
	if spec.Fixed() {
		out := PriceRange{Low: spec.Low, High: spec.High}
		return out, out.validate()
	}
	rule, err := newRangeRule(spec, pivot, decimals0, decimals1)
	if err != nil {
		return PriceRange{}, err
	}
	return rule.around(pivot)
}

func rebalanceBand(spec *model.RebalanceSpec, pivot float64) (PriceRange, bool) {
	if spec == nil || !(spec.UptickPercent > 0) || !(spec.DowntickPercent > 0) {
		return PriceRange{}, false
	}
	return PriceRange{
		Low:  pivot * (1 - spec.DowntickPercent/100),
		High: pivot * (1 + spec.UptickPercent/100),
	}, true
}
