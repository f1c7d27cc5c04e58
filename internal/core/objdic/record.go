package objdic

import (
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
)

const (
	// One flash page, so a write never straddles an erase boundary.
	CONFIG_BLOCK_SIZE = 2048
	// Encoded size of Record before padding.
	RECORD_SIZE = 98

	VALID_BLOCK uint8 = 0xA5
	ERASED_BYTE uint8 = 0xFF
)

// Delays are counted in scheduler ticks of this length.
const TICK_PERIOD = time.Millisecond

// Default delays in 1ms ticks
const (
	WATCHDOG_DELAY    uint32 = 512
	CHARGER_DELAY     uint32 = 512
	MONITOR_DELAY     uint32 = 512
	MEASUREMENT_DELAY uint32 = 512
	CALIBRATION_DELAY uint32 = 4096
)

// Battery monitoring default triggers, absolute values times 256
const (
	GOOD_VOLTAGE     int16 = 3328 // 13.0V
	LOW_VOLTAGE      int16 = 3072 // 12.0V
	CRITICAL_VOLTAGE int16 = 2995 // 11.5V
	WEAK_VOLTAGE     int16 = 2944 // 11.1V

	LOW_SOC      int16 = 60 * 256
	CRITICAL_SOC int16 = 45 * 256
)

// Charger algorithm defaults
const (
	REST_TIME       int16  = 30
	ABSORPTION_TIME uint16 = 90
	// Lowest duty cycle. The multiplicative controller cannot recover from zero.
	MIN_DUTYCYCLE  int16 = 256
	FLOAT_DELAY    int16 = 7200
	FLOAT_BULK_SOC int16 = 95 * 256
)

const (
	ALPHA_R int16 = 100
	ALPHA_V int16 = 102
	ALPHA_C int16 = 180
)

type chargeParameters struct {
	absorptionVoltage      int16
	floatVoltage           int16
	bulkCurrentLimitScale  int16
	floatStageCurrentScale int16
}

// Per chemistry, voltages times 256: wet 14.7/13.2V, gel 14.0/13.1V, AGM 14.4/13.3V.
// Current scales divide the capacity in Ah.
var chemistryParameters = map[domain.BatteryType]chargeParameters{
	domain.BatteryTypeWet: {absorptionVoltage: 3763, floatVoltage: 3379, bulkCurrentLimitScale: 5, floatStageCurrentScale: 50},
	domain.BatteryTypeGel: {absorptionVoltage: 3584, floatVoltage: 3354, bulkCurrentLimitScale: 5, floatStageCurrentScale: 50},
	domain.BatteryTypeAGM: {absorptionVoltage: 3686, floatVoltage: 3405, bulkCurrentLimitScale: 4, floatStageCurrentScale: 100},
}

var defaultCapacity = [domain.NUM_BATS]uint16{100, 100, 100}
var defaultType = [domain.NUM_BATS]domain.BatteryType{domain.BatteryTypeWet, domain.BatteryTypeGel, domain.BatteryTypeWet}

// Record is the persisted configuration block. Field order is the serialized order.
type Record struct {
	ValidBlock uint8

	EnableSend       bool
	MeasurementSend  bool
	DebugMessageSend bool
	Recording        bool

	BatteryCapacity        [domain.NUM_BATS]uint16
	BatteryType            [domain.NUM_BATS]domain.BatteryType
	AbsorptionVoltage      [domain.NUM_BATS]int16
	FloatVoltage           [domain.NUM_BATS]int16
	FloatStageCurrentScale [domain.NUM_BATS]int16
	BulkCurrentLimitScale  [domain.NUM_BATS]int16
	AlphaR                 int16
	AlphaV                 int16
	AlphaC                 int16

	AutoTrack          bool
	PanelSwitchSetting uint8
	MonitorStrategy    uint8
	LowVoltage         int16
	CriticalVoltage    int16
	LowSoC             int16
	CriticalSoC        int16
	FloatBulkSoC       int16

	ChargerStrategy uint8
	RestTime        int16
	AbsorptionTime  uint16
	MinDutyCycle    int16
	FloatTime       int16

	WatchdogDelay    uint32
	ChargerDelay     uint32
	MeasurementDelay uint32
	MonitorDelay     uint32
	CalibrationDelay uint32

	CurrentOffsets [domain.NUM_IFS]int16
}

// DefaultRecord returns the compiled-in configuration with a valid tag.
func DefaultRecord() Record {
	r := Record{
		ValidBlock:       VALID_BLOCK,
		EnableSend:       true,
		MeasurementSend:  true,
		DebugMessageSend: false,
		Recording:        false,
		AlphaR:           ALPHA_R,
		AlphaV:           ALPHA_V,
		AlphaC:           ALPHA_C,
		AutoTrack:        false,
		MonitorStrategy:  0xFF,
		LowVoltage:       LOW_VOLTAGE,
		CriticalVoltage:  CRITICAL_VOLTAGE,
		LowSoC:           LOW_SOC,
		CriticalSoC:      CRITICAL_SOC,
		FloatBulkSoC:     FLOAT_BULK_SOC,
		ChargerStrategy:  0,
		RestTime:         REST_TIME,
		AbsorptionTime:   ABSORPTION_TIME,
		MinDutyCycle:     MIN_DUTYCYCLE,
		FloatTime:        FLOAT_DELAY,
		WatchdogDelay:    WATCHDOG_DELAY,
		ChargerDelay:     CHARGER_DELAY,
		MeasurementDelay: MEASUREMENT_DELAY,
		MonitorDelay:     MONITOR_DELAY,
		CalibrationDelay: CALIBRATION_DELAY,
	}
	for i := 0; i < domain.NUM_BATS; i++ {
		r.BatteryCapacity[i] = defaultCapacity[i]
		r.BatteryType[i] = defaultType[i]
		r.applyChargeParameters(i)
	}
	return r
}

func (r *Record) applyChargeParameters(battery int) {
	p, ok := chemistryParameters[r.BatteryType[battery]]
	if !ok {
		p = chemistryParameters[domain.BatteryTypeWet]
	}
	r.AbsorptionVoltage[battery] = p.absorptionVoltage
	r.FloatVoltage[battery] = p.floatVoltage
	r.BulkCurrentLimitScale[battery] = p.bulkCurrentLimitScale
	r.FloatStageCurrentScale[battery] = p.floatStageCurrentScale
}

func (r *Record) Valid() bool {
	return r.ValidBlock == VALID_BLOCK
}
