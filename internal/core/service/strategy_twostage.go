package service

import (
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"
)

// TwoStageStrategy skips the absorption hold and floats as soon as the absorption limit is reached.
type TwoStageStrategy struct {
	ThreeStageStrategy
}

var _ port.ChargingStrategy = TwoStageStrategy{}

func (TwoStageStrategy) Name() string {
	return "two_stage"
}

func (s TwoStageStrategy) NextPhase(in port.PhaseInput) domain.ChargePhase {
	switch in.State.Phase {
	case domain.PhaseBulk:
		if in.Charging && in.State.FilteredVoltage >= int32(in.AbsorptionLimit) {
			return domain.PhaseFloat
		}
		return in.State.Phase
	case domain.PhaseAbsorption:
		// left over from a strategy switch
		if in.Charging {
			return domain.PhaseFloat
		}
		return in.State.Phase
	}
	return s.ThreeStageStrategy.NextPhase(in)
}

const CHARGER_STRATEGY_TWOSTAGE uint8 = 1 << 0

// StrategyFor selects the strategy named by the charger strategy bitmap.
func StrategyFor(chargerStrategy uint8) port.ChargingStrategy {
	if chargerStrategy&CHARGER_STRATEGY_TWOSTAGE != 0 {
		return TwoStageStrategy{}
	}
	return ThreeStageStrategy{}
}
