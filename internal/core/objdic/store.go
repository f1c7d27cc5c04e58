package objdic

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"
	"go.uber.org/zap"
)

// Bits of the Controls bitmap
const (
	CONTROL_ENABLE_SEND      uint8 = 1 << 0
	CONTROL_MEASUREMENT_SEND uint8 = 1 << 1
	CONTROL_DEBUG_SEND       uint8 = 1 << 2
	CONTROL_RECORDING        uint8 = 1 << 3
	CONTROL_AUTO_TRACK       uint8 = 1 << 4
)

// Store owns the process-wide configuration record.
// Every accessor sees either the previous or the fully applied value of a field.
type Store struct {
	mu      sync.RWMutex
	rec     Record
	storage port.BlockStorage
	logger  *zap.Logger
}

var _ port.ChargingParams = (*Store)(nil)
var _ port.ChargeSelector = (*Store)(nil)
var _ port.FilterParams = (*Store)(nil)

// NewStore returns a store holding the compiled-in defaults. Call Load to read the persisted block.
func NewStore(storage port.BlockStorage, logger *zap.Logger) *Store {
	return &Store{
		rec:     DefaultRecord(),
		storage: storage,
		logger:  logger,
	}
}

// Load reads the persisted block. A missing, short or untagged block reestablishes
// the defaults and returns defaulted=true. Read failures also fall back to defaults
// and are returned so the caller can log them.
func (s *Store) Load() (defaulted bool, err error) {
	data, err := s.storage.ReadBlock()
	if err != nil {
		s.SetDefaults()
		if errors.Is(err, port.ErrBlockNotFound) {
			s.logger.Info("config block not found, using defaults")
			return true, nil
		}
		return true, fmt.Errorf("objdic: read config block: %w", err)
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		s.logger.Warn("config block unreadable, using defaults", zap.Error(err))
		s.SetDefaults()
		return true, nil
	}
	if !rec.Valid() {
		s.logger.Warn("config block tag mismatch, using defaults", zap.Uint8("tag", rec.ValidBlock))
		s.SetDefaults()
		return true, nil
	}
	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()
	return false, nil
}

// SetDefaults replaces every field with its compiled-in value and sets the valid tag.
// Nothing is written to storage.
func (s *Store) SetDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = DefaultRecord()
}

// WriteBlock replaces the whole persisted block with the current record.
func (s *Store) WriteBlock() error {
	data, err := s.Snapshot().MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.storage.WriteBlock(data); err != nil {
		return fmt.Errorf("objdic: write config block: %w", err)
	}
	return nil
}

// Snapshot copies the whole record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

func (s *Store) read(fn func(r *Record)) {
	s.mu.RLock()
	fn(&s.rec)
	s.mu.RUnlock()
}

func (s *Store) update(fn func(r *Record)) {
	s.mu.Lock()
	fn(&s.rec)
	s.mu.Unlock()
}

func checkBattery(battery int) error {
	if battery < 0 || battery >= domain.NUM_BATS {
		return fmt.Errorf("%w: %d", ErrInvalidBattery, battery)
	}
	return nil
}

// SetBatteryChargeParameters re-derives voltages and current scales from the battery chemistry.
func (s *Store) SetBatteryChargeParameters(battery int) error {
	if err := checkBattery(battery); err != nil {
		return err
	}
	s.update(func(r *Record) { r.applyChargeParameters(battery) })
	return nil
}

func (s *Store) SetBatteryType(battery int, batteryType domain.BatteryType) error {
	return s.SetParam(PARAM_BATTERY_TYPE, battery, int64(batteryType))
}

func (s *Store) SetPanelSwitchSetting(setting uint8) error {
	return s.SetParam(PARAM_PANEL_SWITCH_SETTING, 0, int64(setting))
}

func (s *Store) SetCurrentOffset(intf int, offset int16) error {
	return s.SetParam(PARAM_CURRENT_OFFSET, intf, int64(offset))
}

// Per battery

func (s *Store) BatteryType(battery int) (t domain.BatteryType) {
	s.read(func(r *Record) { t = r.BatteryType[battery] })
	return
}

func (s *Store) BatteryCapacity(battery int) (c uint16) {
	s.read(func(r *Record) { c = r.BatteryCapacity[battery] })
	return
}

func (s *Store) AbsorptionVoltage(battery int) (v int16) {
	s.read(func(r *Record) { v = r.AbsorptionVoltage[battery] })
	return
}

func (s *Store) FloatVoltage(battery int) (v int16) {
	s.read(func(r *Record) { v = r.FloatVoltage[battery] })
	return
}

// BulkCurrentLimit is the capacity divided by the bulk current scale, times 256.
func (s *Store) BulkCurrentLimit(battery int) (c int16) {
	s.read(func(r *Record) { c = scaledCurrent(r.BatteryCapacity[battery], r.BulkCurrentLimitScale[battery]) })
	return
}

// FloatStageCurrent is the capacity divided by the float stage current scale, times 256.
func (s *Store) FloatStageCurrent(battery int) (c int16) {
	s.read(func(r *Record) { c = scaledCurrent(r.BatteryCapacity[battery], r.FloatStageCurrentScale[battery]) })
	return
}

func scaledCurrent(capacity uint16, scale int16) int16 {
	if scale <= 0 {
		scale = 1
	}
	v := (int32(capacity) * domain.FIXED_POINT_ONE) / int32(scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(v)
}

func (s *Store) CurrentOffset(intf int) (o int16) {
	s.read(func(r *Record) { o = r.CurrentOffsets[intf] })
	return
}

// Filter coefficients

func (s *Store) AlphaR() (a int16) {
	s.read(func(r *Record) { a = r.AlphaR })
	return
}

func (s *Store) AlphaV() (a int16) {
	s.read(func(r *Record) { a = r.AlphaV })
	return
}

func (s *Store) AlphaC() (a int16) {
	s.read(func(r *Record) { a = r.AlphaC })
	return
}

// Thresholds

func (s *Store) LowVoltage() (v int16) {
	s.read(func(r *Record) { v = r.LowVoltage })
	return
}

func (s *Store) CriticalVoltage() (v int16) {
	s.read(func(r *Record) { v = r.CriticalVoltage })
	return
}

func (s *Store) LowSoC() (v int16) {
	s.read(func(r *Record) { v = r.LowSoC })
	return
}

func (s *Store) CriticalSoC() (v int16) {
	s.read(func(r *Record) { v = r.CriticalSoC })
	return
}

func (s *Store) FloatBulkSoC() (v int16) {
	s.read(func(r *Record) { v = r.FloatBulkSoC })
	return
}

// Charger timing

func (s *Store) RestTime() (d time.Duration) {
	s.read(func(r *Record) { d = time.Duration(r.RestTime) * time.Second })
	return
}

func (s *Store) AbsorptionTime() (d time.Duration) {
	s.read(func(r *Record) { d = time.Duration(r.AbsorptionTime) * time.Second })
	return
}

func (s *Store) FloatTime() (d time.Duration) {
	s.read(func(r *Record) { d = time.Duration(r.FloatTime) * time.Second })
	return
}

// MinDutyCycle never returns zero, a zero duty cycle cannot be scaled back up.
func (s *Store) MinDutyCycle() (d uint32) {
	d = uint32(MIN_DUTYCYCLE)
	s.read(func(r *Record) {
		if r.MinDutyCycle > 0 {
			d = uint32(r.MinDutyCycle)
		}
	})
	return
}

// Task delays in ticks

func (s *Store) WatchdogDelay() (d uint32) {
	s.read(func(r *Record) { d = r.WatchdogDelay })
	return
}

func (s *Store) ChargerDelay() (d uint32) {
	s.read(func(r *Record) { d = r.ChargerDelay })
	return
}

func (s *Store) MeasurementDelay() (d uint32) {
	s.read(func(r *Record) { d = r.MeasurementDelay })
	return
}

func (s *Store) MonitorDelay() (d uint32) {
	s.read(func(r *Record) { d = r.MonitorDelay })
	return
}

func (s *Store) CalibrationDelay() (d uint32) {
	s.read(func(r *Record) { d = r.CalibrationDelay })
	return
}

// TickDuration converts a delay in ticks to wall time.
func TickDuration(ticks uint32) time.Duration {
	return time.Duration(ticks) * TICK_PERIOD
}

// Switches and strategies

func (s *Store) PanelSwitchSetting() (v uint8) {
	s.read(func(r *Record) { v = r.PanelSwitchSetting })
	return
}

// ChargingBattery maps the panel switch setting to a battery index. Setting 0 selects none.
func (s *Store) ChargingBattery() (int, bool) {
	setting := int(s.PanelSwitchSetting())
	if setting < 1 || setting > domain.NUM_BATS {
		return -1, false
	}
	return setting - 1, true
}

func (s *Store) MonitorStrategy() (v uint8) {
	s.read(func(r *Record) { v = r.MonitorStrategy })
	return
}

func (s *Store) ChargerStrategy() (v uint8) {
	s.read(func(r *Record) { v = r.ChargerStrategy })
	return
}

func (s *Store) IsRecording() (v bool) {
	s.read(func(r *Record) { v = r.Recording })
	return
}

func (s *Store) IsAutoTrack() (v bool) {
	s.read(func(r *Record) { v = r.AutoTrack })
	return
}

// Controls packs the boolean flags into a bitmap.
func (s *Store) Controls() uint8 {
	var c uint8
	s.read(func(r *Record) {
		if r.EnableSend {
			c |= CONTROL_ENABLE_SEND
		}
		if r.MeasurementSend {
			c |= CONTROL_MEASUREMENT_SEND
		}
		if r.DebugMessageSend {
			c |= CONTROL_DEBUG_SEND
		}
		if r.Recording {
			c |= CONTROL_RECORDING
		}
		if r.AutoTrack {
			c |= CONTROL_AUTO_TRACK
		}
	})
	return c
}
