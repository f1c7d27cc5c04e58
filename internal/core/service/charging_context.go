package service

import "github.com/berfenger/solarcharger/internal/core/domain"

// ChargingContext is the state owned by one run of the charging loop.
// A restarted loop starts from a new context.
type ChargingContext struct {
	Batteries [domain.NUM_BATS]domain.BatteryChargeState
	Periods   uint64
}

// NewChargingContext puts every slot in Bulk with unseeded filters and the given duty cycle.
func NewChargingContext(initialDutyCycle uint32) *ChargingContext {
	cc := &ChargingContext{}
	for i := range cc.Batteries {
		cc.Batteries[i] = domain.BatteryChargeState{
			Phase:     domain.PhaseBulk,
			DutyCycle: initialDutyCycle,
		}
	}
	return cc
}

// States copies the per slot state.
func (cc *ChargingContext) States() []domain.BatteryChargeState {
	out := make([]domain.BatteryChargeState, len(cc.Batteries))
	copy(out, cc.Batteries[:])
	return out
}
