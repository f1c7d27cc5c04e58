package service

import (
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"
)

const (
	// consecutive low current periods before absorption ends
	FLOAT_DELAY_LIMIT = 10
	// SoC below which a rested battery needs charging again
	REST_SOC       int16 = 70 * 256
	SOC_HYSTERESIS int16 = 5 * 256

	EQUALIZATION_TIME = 2 * time.Hour
)

// ThreeStageStrategy is bulk, absorption and float with rest and equalization.
type ThreeStageStrategy struct{}

var _ port.ChargingStrategy = ThreeStageStrategy{}

func (ThreeStageStrategy) Name() string {
	return "three_stage"
}

func (s ThreeStageStrategy) NextPhase(in port.PhaseInput) domain.ChargePhase {
	state := in.State
	switch state.Phase {
	case domain.PhaseBulk:
		if in.Charging && state.FilteredVoltage >= int32(in.AbsorptionLimit) {
			return domain.PhaseAbsorption
		}
	case domain.PhaseAbsorption:
		if !in.Charging {
			break
		}
		lowCurrent := state.LowCurrentCount >= FLOAT_DELAY_LIMIT && state.PhaseTime >= in.Params.AbsorptionTime()
		if lowCurrent || state.PhaseTime >= in.Params.FloatTime() {
			return domain.PhaseFloat
		}
	case domain.PhaseFloat:
		return floatNextPhase(in)
	case domain.PhaseRest:
		return restNextPhase(in)
	case domain.PhaseEqualization:
		return equalizationNextPhase(in)
	}
	return state.Phase
}

func floatNextPhase(in port.PhaseInput) domain.ChargePhase {
	if !in.Charging {
		return domain.PhaseRest
	}
	if in.State.EqualizationPending && in.Params.BatteryType(in.Battery) == domain.BatteryTypeWet {
		return domain.PhaseEqualization
	}
	return domain.PhaseFloat
}

func restNextPhase(in port.PhaseInput) domain.ChargePhase {
	if in.State.PhaseTime >= in.Params.RestTime() && in.SoC < REST_SOC {
		return domain.PhaseBulk
	}
	if in.Charging && in.SoC < in.Params.FloatBulkSoC()-SOC_HYSTERESIS {
		return domain.PhaseBulk
	}
	return domain.PhaseRest
}

func equalizationNextPhase(in port.PhaseInput) domain.ChargePhase {
	if !in.Charging || in.State.PhaseTime >= EQUALIZATION_TIME || in.State.LowCurrentCount >= FLOAT_DELAY_LIMIT {
		return domain.PhaseFloat
	}
	return domain.PhaseEqualization
}
