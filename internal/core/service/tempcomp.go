package service

import "math"

const (
	// 25C times 256
	REFERENCE_TEMPERATURE int32 = 25 * 256
	// about 30mV per degree on a 12V battery, scaled by 2^16
	TEMPERATURE_COMPENSATION int32 = 1966
)

// EffectiveLimit lowers a nominal voltage limit above the reference temperature and raises it below.
func EffectiveLimit(nominal int16, temperature int16) int16 {
	offset := (TEMPERATURE_COMPENSATION * (REFERENCE_TEMPERATURE - int32(temperature))) >> 16
	return saturate16(int32(nominal) + offset)
}

func saturate16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
