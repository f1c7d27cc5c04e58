package objdic

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/berfenger/solarcharger/internal/core/domain"
)

var (
	ErrInvalidBattery  = errors.New("invalid battery index")
	ErrUnknownParam    = errors.New("unknown parameter")
	ErrValueOutOfRange = errors.New("value out of range")
)

const (
	PARAM_ENABLE_SEND               = "enable_send"
	PARAM_MEASUREMENT_SEND          = "measurement_send"
	PARAM_DEBUG_MESSAGE_SEND        = "debug_message_send"
	PARAM_RECORDING                 = "recording"
	PARAM_BATTERY_CAPACITY          = "battery_capacity"
	PARAM_BATTERY_TYPE              = "battery_type"
	PARAM_ABSORPTION_VOLTAGE        = "absorption_voltage"
	PARAM_FLOAT_VOLTAGE             = "float_voltage"
	PARAM_FLOAT_STAGE_CURRENT_SCALE = "float_stage_current_scale"
	PARAM_BULK_CURRENT_LIMIT_SCALE  = "bulk_current_limit_scale"
	PARAM_ALPHA_R                   = "alpha_r"
	PARAM_ALPHA_V                   = "alpha_v"
	PARAM_ALPHA_C                   = "alpha_c"
	PARAM_AUTO_TRACK                = "auto_track"
	PARAM_PANEL_SWITCH_SETTING      = "panel_switch_setting"
	PARAM_MONITOR_STRATEGY          = "monitor_strategy"
	PARAM_LOW_VOLTAGE               = "low_voltage"
	PARAM_CRITICAL_VOLTAGE          = "critical_voltage"
	PARAM_LOW_SOC                   = "low_soc"
	PARAM_CRITICAL_SOC              = "critical_soc"
	PARAM_FLOAT_BULK_SOC            = "float_bulk_soc"
	PARAM_CHARGER_STRATEGY          = "charger_strategy"
	PARAM_REST_TIME                 = "rest_time"
	PARAM_ABSORPTION_TIME           = "absorption_time"
	PARAM_MIN_DUTY_CYCLE            = "min_duty_cycle"
	PARAM_FLOAT_TIME                = "float_time"
	PARAM_WATCHDOG_DELAY            = "watchdog_delay"
	PARAM_CHARGER_DELAY             = "charger_delay"
	PARAM_MEASUREMENT_DELAY         = "measurement_delay"
	PARAM_MONITOR_DELAY             = "monitor_delay"
	PARAM_CALIBRATION_DELAY         = "calibration_delay"
	PARAM_CURRENT_OFFSET            = "current_offset"
)

// longest task delay accepted, one minute of ticks
const MAX_DELAY = 60000

type paramDef struct {
	// number of indexed slots, 0 for a scalar
	slots    int
	min, max int64
	get      func(r *Record, i int) int64
	set      func(r *Record, i int, v int64)
}

func boolParam(field func(r *Record) *bool) paramDef {
	return paramDef{
		min: 0, max: 1,
		get: func(r *Record, _ int) int64 {
			if *field(r) {
				return 1
			}
			return 0
		},
		set: func(r *Record, _ int, v int64) { *field(r) = v != 0 },
	}
}

func i16Param(min, max int64, field func(r *Record) *int16) paramDef {
	return paramDef{
		min: min, max: max,
		get: func(r *Record, _ int) int64 { return int64(*field(r)) },
		set: func(r *Record, _ int, v int64) { *field(r) = int16(v) },
	}
}

func u8Param(min, max int64, field func(r *Record) *uint8) paramDef {
	return paramDef{
		min: min, max: max,
		get: func(r *Record, _ int) int64 { return int64(*field(r)) },
		set: func(r *Record, _ int, v int64) { *field(r) = uint8(v) },
	}
}

func delayParam(field func(r *Record) *uint32) paramDef {
	return paramDef{
		min: 1, max: MAX_DELAY,
		get: func(r *Record, _ int) int64 { return int64(*field(r)) },
		set: func(r *Record, _ int, v int64) { *field(r) = uint32(v) },
	}
}

func batteryI16Param(min, max int64, field func(r *Record) *[domain.NUM_BATS]int16) paramDef {
	return paramDef{
		slots: domain.NUM_BATS,
		min:   min, max: max,
		get: func(r *Record, i int) int64 { return int64(field(r)[i]) },
		set: func(r *Record, i int, v int64) { field(r)[i] = int16(v) },
	}
}

var params = map[string]paramDef{
	PARAM_ENABLE_SEND:        boolParam(func(r *Record) *bool { return &r.EnableSend }),
	PARAM_MEASUREMENT_SEND:   boolParam(func(r *Record) *bool { return &r.MeasurementSend }),
	PARAM_DEBUG_MESSAGE_SEND: boolParam(func(r *Record) *bool { return &r.DebugMessageSend }),
	PARAM_RECORDING:          boolParam(func(r *Record) *bool { return &r.Recording }),
	PARAM_AUTO_TRACK:         boolParam(func(r *Record) *bool { return &r.AutoTrack }),

	PARAM_BATTERY_CAPACITY: {
		slots: domain.NUM_BATS,
		min:   1, max: math.MaxUint16,
		get: func(r *Record, i int) int64 { return int64(r.BatteryCapacity[i]) },
		set: func(r *Record, i int, v int64) { r.BatteryCapacity[i] = uint16(v) },
	},
	PARAM_BATTERY_TYPE: {
		slots: domain.NUM_BATS,
		min:   int64(domain.BatteryTypeWet), max: int64(domain.BatteryTypeAGM),
		get: func(r *Record, i int) int64 { return int64(r.BatteryType[i]) },
		set: func(r *Record, i int, v int64) {
			r.BatteryType[i] = domain.BatteryType(v)
			r.applyChargeParameters(i)
		},
	},
	PARAM_ABSORPTION_VOLTAGE:        batteryI16Param(0, math.MaxInt16, func(r *Record) *[domain.NUM_BATS]int16 { return &r.AbsorptionVoltage }),
	PARAM_FLOAT_VOLTAGE:             batteryI16Param(0, math.MaxInt16, func(r *Record) *[domain.NUM_BATS]int16 { return &r.FloatVoltage }),
	PARAM_FLOAT_STAGE_CURRENT_SCALE: batteryI16Param(1, math.MaxInt16, func(r *Record) *[domain.NUM_BATS]int16 { return &r.FloatStageCurrentScale }),
	PARAM_BULK_CURRENT_LIMIT_SCALE:  batteryI16Param(1, math.MaxInt16, func(r *Record) *[domain.NUM_BATS]int16 { return &r.BulkCurrentLimitScale }),

	PARAM_ALPHA_R: i16Param(0, 255, func(r *Record) *int16 { return &r.AlphaR }),
	PARAM_ALPHA_V: i16Param(0, 255, func(r *Record) *int16 { return &r.AlphaV }),
	PARAM_ALPHA_C: i16Param(0, 255, func(r *Record) *int16 { return &r.AlphaC }),

	PARAM_PANEL_SWITCH_SETTING: u8Param(0, domain.NUM_BATS, func(r *Record) *uint8 { return &r.PanelSwitchSetting }),
	PARAM_MONITOR_STRATEGY:     u8Param(0, math.MaxUint8, func(r *Record) *uint8 { return &r.MonitorStrategy }),
	PARAM_CHARGER_STRATEGY:     u8Param(0, math.MaxUint8, func(r *Record) *uint8 { return &r.ChargerStrategy }),

	PARAM_LOW_VOLTAGE:      i16Param(0, math.MaxInt16, func(r *Record) *int16 { return &r.LowVoltage }),
	PARAM_CRITICAL_VOLTAGE: i16Param(0, math.MaxInt16, func(r *Record) *int16 { return &r.CriticalVoltage }),
	PARAM_LOW_SOC:          i16Param(0, 100*domain.FIXED_POINT_ONE, func(r *Record) *int16 { return &r.LowSoC }),
	PARAM_CRITICAL_SOC:     i16Param(0, 100*domain.FIXED_POINT_ONE, func(r *Record) *int16 { return &r.CriticalSoC }),
	PARAM_FLOAT_BULK_SOC:   i16Param(0, 100*domain.FIXED_POINT_ONE, func(r *Record) *int16 { return &r.FloatBulkSoC }),

	PARAM_REST_TIME: i16Param(0, math.MaxInt16, func(r *Record) *int16 { return &r.RestTime }),
	PARAM_ABSORPTION_TIME: {
		min: 0, max: math.MaxUint16,
		get: func(r *Record, _ int) int64 { return int64(r.AbsorptionTime) },
		set: func(r *Record, _ int, v int64) { r.AbsorptionTime = uint16(v) },
	},
	PARAM_MIN_DUTY_CYCLE: i16Param(1, math.MaxInt16, func(r *Record) *int16 { return &r.MinDutyCycle }),
	PARAM_FLOAT_TIME:     i16Param(0, math.MaxInt16, func(r *Record) *int16 { return &r.FloatTime }),

	PARAM_WATCHDOG_DELAY:    delayParam(func(r *Record) *uint32 { return &r.WatchdogDelay }),
	PARAM_CHARGER_DELAY:     delayParam(func(r *Record) *uint32 { return &r.ChargerDelay }),
	PARAM_MEASUREMENT_DELAY: delayParam(func(r *Record) *uint32 { return &r.MeasurementDelay }),
	PARAM_MONITOR_DELAY:     delayParam(func(r *Record) *uint32 { return &r.MonitorDelay }),
	PARAM_CALIBRATION_DELAY: delayParam(func(r *Record) *uint32 { return &r.CalibrationDelay }),

	PARAM_CURRENT_OFFSET: {
		slots: domain.NUM_IFS,
		min:   math.MinInt16, max: math.MaxInt16,
		get: func(r *Record, i int) int64 { return int64(r.CurrentOffsets[i]) },
		set: func(r *Record, i int, v int64) { r.CurrentOffsets[i] = int16(v) },
	},
}

// ParamNames lists every named parameter in lexical order.
func ParamNames() []string {
	return slices.Sorted(maps.Keys(params))
}

// IsIndexed reports whether a parameter takes a battery or interface index.
func IsIndexed(name string) bool {
	return params[name].slots > 0
}

func lookupParam(name string, index int) (paramDef, error) {
	def, ok := params[name]
	if !ok {
		return def, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	if def.slots > 0 && (index < 0 || index >= def.slots) {
		return def, fmt.Errorf("%w: %s[%d]", ErrInvalidBattery, name, index)
	}
	return def, nil
}

// Param reads a field by name. The index is ignored for scalar parameters.
func (s *Store) Param(name string, index int) (int64, error) {
	def, err := lookupParam(name, index)
	if err != nil {
		return 0, err
	}
	var v int64
	s.read(func(r *Record) { v = def.get(r, index) })
	return v, nil
}

// SetParam validates and applies a single field. The record is not persisted.
func (s *Store) SetParam(name string, index int, value int64) error {
	def, err := lookupParam(name, index)
	if err != nil {
		return err
	}
	if value < def.min || value > def.max {
		return fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrValueOutOfRange, name, value, def.min, def.max)
	}
	s.update(func(r *Record) { def.set(r, index, value) })
	return nil
}

// Params dumps every parameter, indexed ones as one entry per slot.
func (s *Store) Params() map[string][]int64 {
	out := make(map[string][]int64, len(params))
	s.read(func(r *Record) {
		for name, def := range params {
			if def.slots == 0 {
				out[name] = []int64{def.get(r, 0)}
				continue
			}
			values := make([]int64, def.slots)
			for i := range values {
				values[i] = def.get(r, i)
			}
			out[name] = values
		}
	})
	return out
}
