package adc_modbus

import (
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func (reader ModbusClient) readRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", reader.instrument)()
	return reader.client.ReadRegisters(addr, quantity, regType)
}

func (reader ModbusClient) writeRegister(addr uint16, value uint16) error {
	defer RecordTimer("WriteRegister", reader.instrument)()
	return reader.client.WriteRegister(addr, value)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	if logger == nil {
		return nil
	}
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus timing", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
