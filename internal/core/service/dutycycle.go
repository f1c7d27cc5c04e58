package service

const (
	DUTY_DECREASE_FACTOR = 115
	DUTY_INCREASE_FACTOR = 140
	DUTY_FACTOR_SHIFT    = 7
)

// AdaptDutyCycle steps the duty cycle toward the temperature compensated target.
// Above the limit it is cut to 115/128, otherwise it grows by 140/128.
// No floor or ceiling is applied here, the caller owns both bounds.
func AdaptDutyCycle(measuredVoltage int32, targetLimit int16, temperature int16, dutyCycle *uint32) {
	limit := int32(EffectiveLimit(targetLimit, temperature))
	duty := uint64(*dutyCycle)
	if measuredVoltage > limit {
		duty = (duty * DUTY_DECREASE_FACTOR) >> DUTY_FACTOR_SHIFT
	} else {
		duty = (duty * DUTY_INCREASE_FACTOR) >> DUTY_FACTOR_SHIFT
	}
	*dutyCycle = uint32(duty)
}
