package domain

import "time"

const (
	NUM_BATS   = 3
	NUM_LOADS  = 2
	NUM_PANELS = 1
	NUM_IFS    = NUM_BATS + NUM_LOADS + NUM_PANELS

	// interface indexes after the batteries
	LOAD_1 = 0
	LOAD_2 = 1
	PANEL  = 2

	FIRMWARE_VERSION = "1.07a"
)

// Fixed point scale of every voltage, current, temperature and SoC value.
const FIXED_POINT_ONE = 256

// Duty cycle is a percentage times 256.
const MAX_DUTY_CYCLE uint32 = 100 * FIXED_POINT_ONE

// BatteryType identifies the way a battery is charged and the voltage levels involved.
type BatteryType uint8

const (
	BatteryTypeWet BatteryType = 0
	BatteryTypeGel BatteryType = 1
	BatteryTypeAGM BatteryType = 2
)

func (t BatteryType) String() string {
	switch t {
	case BatteryTypeWet:
		return "wet"
	case BatteryTypeGel:
		return "gel"
	case BatteryTypeAGM:
		return "agm"
	}
	return "unknown"
}

func (t BatteryType) Valid() bool {
	return t <= BatteryTypeAGM
}

// ChargePhase is a stage in the charge cycle.
type ChargePhase uint8

const (
	PhaseBulk         ChargePhase = 0
	PhaseAbsorption   ChargePhase = 1
	PhaseFloat        ChargePhase = 2
	PhaseRest         ChargePhase = 3
	PhaseEqualization ChargePhase = 4
)

func (p ChargePhase) String() string {
	switch p {
	case PhaseBulk:
		return "bulk"
	case PhaseAbsorption:
		return "absorption"
	case PhaseFloat:
		return "float"
	case PhaseRest:
		return "rest"
	case PhaseEqualization:
		return "equalization"
	}
	return "unknown"
}

// FillState is owned by the battery monitor. Read only here.
type FillState uint8

const (
	FillNormal   FillState = 0
	FillLow      FillState = 1
	FillCritical FillState = 2
	FillFaulty   FillState = 3
)

// OpState is the allocation of a battery to load or charger. Read only here.
type OpState uint8

const (
	OpLoaded   OpState = 0
	OpCharging OpState = 1
	OpIsolated OpState = 2
)

// HealthState: weak avoids allocation to load, faulty means charging did not end cleanly.
type HealthState uint8

const (
	HealthGood    HealthState = 0
	HealthFaulty  HealthState = 1
	HealthMissing HealthState = 2
	HealthWeak    HealthState = 3
)

func (h HealthState) String() string {
	switch h {
	case HealthGood:
		return "good"
	case HealthFaulty:
		return "faulty"
	case HealthMissing:
		return "missing"
	case HealthWeak:
		return "weak"
	}
	return "unknown"
}

// BatteryChargeState is the per slot state of the charging loop.
// Voltage, current and duty cycle are fixed point values times 256.
type BatteryChargeState struct {
	Phase           ChargePhase
	FilteredVoltage int32
	FilteredCurrent int32
	// Seeded is false until the filter has seen its first sample.
	Seeded    bool
	DutyCycle uint32

	PhaseTime           time.Duration
	LowCurrentCount     uint16
	EqualizationPending bool
}

// Raw samples for one period. Currents are not yet corrected by the calibration offset.
type BatterySamples struct {
	Current [NUM_BATS]int16
	Voltage [NUM_BATS]int16
	// Present is false for a slot with no acquired reading yet, or a missing battery.
	Present [NUM_BATS]bool
}
