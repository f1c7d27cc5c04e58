package objdic

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/berfenger/solarcharger/internal/core/domain"
)

var ErrShortBlock = errors.New("config block too short")

// The block layout is shared with the external management protocol.
// Fields are little-endian and packed, in Record declaration order.
// Do not reorder or resize a field without a migration.

type blockWriter struct {
	buf []byte
}

func (w *blockWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *blockWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *blockWriter) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *blockWriter) i16(v int16) {
	w.u16(uint16(v))
}

func (w *blockWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

type blockReader struct {
	buf []byte
	pos int
}

func (r *blockReader) u8() uint8 {
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *blockReader) bool() bool {
	return r.u8() != 0
}

func (r *blockReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *blockReader) i16() int16 {
	return int16(r.u16())
}

func (r *blockReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

// MarshalBinary encodes the record into a full CONFIG_BLOCK_SIZE block padded with erased bytes.
func (rec Record) MarshalBinary() ([]byte, error) {
	w := &blockWriter{buf: make([]byte, 0, CONFIG_BLOCK_SIZE)}

	w.u8(rec.ValidBlock)
	w.bool(rec.EnableSend)
	w.bool(rec.MeasurementSend)
	w.bool(rec.DebugMessageSend)
	w.bool(rec.Recording)

	for _, v := range rec.BatteryCapacity {
		w.u16(v)
	}
	for _, v := range rec.BatteryType {
		w.u8(uint8(v))
	}
	for _, v := range rec.AbsorptionVoltage {
		w.i16(v)
	}
	for _, v := range rec.FloatVoltage {
		w.i16(v)
	}
	for _, v := range rec.FloatStageCurrentScale {
		w.i16(v)
	}
	for _, v := range rec.BulkCurrentLimitScale {
		w.i16(v)
	}
	w.i16(rec.AlphaR)
	w.i16(rec.AlphaV)
	w.i16(rec.AlphaC)

	w.bool(rec.AutoTrack)
	w.u8(rec.PanelSwitchSetting)
	w.u8(rec.MonitorStrategy)
	w.i16(rec.LowVoltage)
	w.i16(rec.CriticalVoltage)
	w.i16(rec.LowSoC)
	w.i16(rec.CriticalSoC)
	w.i16(rec.FloatBulkSoC)

	w.u8(rec.ChargerStrategy)
	w.i16(rec.RestTime)
	w.u16(rec.AbsorptionTime)
	w.i16(rec.MinDutyCycle)
	w.i16(rec.FloatTime)

	w.u32(rec.WatchdogDelay)
	w.u32(rec.ChargerDelay)
	w.u32(rec.MeasurementDelay)
	w.u32(rec.MonitorDelay)
	w.u32(rec.CalibrationDelay)

	for _, v := range rec.CurrentOffsets {
		w.i16(v)
	}

	if len(w.buf) != RECORD_SIZE {
		return nil, fmt.Errorf("objdic: encoded %d bytes, expected %d", len(w.buf), RECORD_SIZE)
	}
	for len(w.buf) < CONFIG_BLOCK_SIZE {
		w.buf = append(w.buf, ERASED_BYTE)
	}
	return w.buf, nil
}

// UnmarshalBinary decodes a block. Padding after RECORD_SIZE is ignored.
func (rec *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RECORD_SIZE {
		return fmt.Errorf("%w: %d bytes", ErrShortBlock, len(data))
	}
	r := &blockReader{buf: data}
	var out Record

	out.ValidBlock = r.u8()
	out.EnableSend = r.bool()
	out.MeasurementSend = r.bool()
	out.DebugMessageSend = r.bool()
	out.Recording = r.bool()

	for i := range out.BatteryCapacity {
		out.BatteryCapacity[i] = r.u16()
	}
	for i := range out.BatteryType {
		out.BatteryType[i] = domain.BatteryType(r.u8())
	}
	for i := range out.AbsorptionVoltage {
		out.AbsorptionVoltage[i] = r.i16()
	}
	for i := range out.FloatVoltage {
		out.FloatVoltage[i] = r.i16()
	}
	for i := range out.FloatStageCurrentScale {
		out.FloatStageCurrentScale[i] = r.i16()
	}
	for i := range out.BulkCurrentLimitScale {
		out.BulkCurrentLimitScale[i] = r.i16()
	}
	out.AlphaR = r.i16()
	out.AlphaV = r.i16()
	out.AlphaC = r.i16()

	out.AutoTrack = r.bool()
	out.PanelSwitchSetting = r.u8()
	out.MonitorStrategy = r.u8()
	out.LowVoltage = r.i16()
	out.CriticalVoltage = r.i16()
	out.LowSoC = r.i16()
	out.CriticalSoC = r.i16()
	out.FloatBulkSoC = r.i16()

	out.ChargerStrategy = r.u8()
	out.RestTime = r.i16()
	out.AbsorptionTime = r.u16()
	out.MinDutyCycle = r.i16()
	out.FloatTime = r.i16()

	out.WatchdogDelay = r.u32()
	out.ChargerDelay = r.u32()
	out.MeasurementDelay = r.u32()
	out.MonitorDelay = r.u32()
	out.CalibrationDelay = r.u32()

	for i := range out.CurrentOffsets {
		out.CurrentOffsets[i] = r.i16()
	}

	*rec = out
	return nil
}
