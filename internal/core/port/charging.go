package port

import (
	"errors"
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
)

var ErrBlockNotFound = errors.New("config block not found")

// MeasurementSource supplies raw readings, fixed point times 256.
type MeasurementSource interface {
	BatteryCurrent(battery int) int16
	BatteryVoltage(battery int) int16
	Temperature() int16
}

// SampleSource supplies the battery channels of one acquisition at once.
type SampleSource interface {
	MeasurementSource
	Samples() domain.BatterySamples
}

// BatterySignals are owned by the battery monitor and only read by the charger.
type BatterySignals interface {
	SoC(battery int) int16
	Health(battery int) domain.HealthState
}

// ChargeSelector reports the battery designated for charging.
type ChargeSelector interface {
	ChargingBattery() (int, bool)
}

// TelemetrySink accepts diagnostic notifications.
type TelemetrySink interface {
	Send(tag string, message string)
}

// BlockStorage persists a whole configuration block at once.
type BlockStorage interface {
	ReadBlock() ([]byte, error)
	WriteBlock(data []byte) error
}

// ChargingParams is the view of the configuration record the phase machine reads each period.
type ChargingParams interface {
	BatteryType(battery int) domain.BatteryType
	AbsorptionVoltage(battery int) int16
	FloatVoltage(battery int) int16
	FloatStageCurrent(battery int) int16
	BulkCurrentLimit(battery int) int16
	FloatBulkSoC() int16
	RestTime() time.Duration
	AbsorptionTime() time.Duration
	FloatTime() time.Duration
	MinDutyCycle() uint32
}

// FilterParams supplies smoothing weights and per interface current calibration.
type FilterParams interface {
	AlphaV() int16
	AlphaC() int16
	CurrentOffset(intf int) int16
}

// PhaseInput is what a charging strategy sees of one battery in one period.
type PhaseInput struct {
	Battery  int
	State    domain.BatteryChargeState
	Charging bool
	SoC      int16
	// Temperature compensated absorption limit
	AbsorptionLimit int16
	Params          ChargingParams
}

// ChargingStrategy decides the algorithm specific phase transitions.
type ChargingStrategy interface {
	Name() string
	NextPhase(in PhaseInput) domain.ChargePhase
}
