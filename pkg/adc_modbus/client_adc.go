package adc_modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

var ErrShortRead = errors.New("short register read")

type ADCModbusReader struct {
	ModbusClient
}

var _ ADCReader = (*ADCModbusReader)(nil)

func CreateADCModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (ADCReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := debugLoggerInstrumentation(logger.With(zap.String("target", "adc"), zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	return &ADCModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
	}, nil
}

func (r *ADCModbusReader) Open() error {
	return r.client.Open()
}

func (r *ADCModbusReader) Close() error {
	return r.client.Close()
}

func (r *ADCModbusReader) Read() (*ADCReading, error) {
	regs, err := r.readRegisters(REG_CURRENT, REG_COUNT, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	if len(regs) < int(REG_COUNT) {
		return nil, fmt.Errorf("%w: %d registers", ErrShortRead, len(regs))
	}
	return decodeReading(regs), nil
}

func (r *ADCModbusReader) Calibrate() error {
	return r.writeRegister(REG_CALIBRATE, 1)
}
