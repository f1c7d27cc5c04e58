package service

import (
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"
)

// UpdateAverages folds one raw sample pair per slot into the exponential averages.
// Every present slot is updated whether or not it is charging. The first sample of an
// unseeded slot is taken as is. Slots without a sample keep their state.
func UpdateAverages(cc *ChargingContext, samples domain.BatterySamples, params port.FilterParams) {
	alphaV := params.AlphaV()
	alphaC := params.AlphaC()
	for i := range cc.Batteries {
		if !samples.Present[i] {
			continue
		}
		state := &cc.Batteries[i]
		voltage := int32(samples.Voltage[i])
		current := int32(samples.Current[i]) - int32(params.CurrentOffset(i))
		if !state.Seeded {
			state.FilteredVoltage = voltage
			state.FilteredCurrent = current
			state.Seeded = true
			continue
		}
		state.FilteredVoltage = smooth(state.FilteredVoltage, voltage, alphaV)
		state.FilteredCurrent = smooth(state.FilteredCurrent, current, alphaC)
	}
}

// avg += coef*(raw-avg) >> 8
func smooth(avg int32, raw int32, coef int16) int32 {
	return avg + (int32(coef)*(raw-avg))>>8
}
