package adc_modbus

import "github.com/berfenger/solarcharger/internal/core/domain"

// Input register map of the acquisition board. Every value is a signed fixed point
// reading times 256 in one register.
const (
	REG_CURRENT     uint16 = 0
	REG_VOLTAGE     uint16 = REG_CURRENT + domain.NUM_IFS
	REG_TEMPERATURE uint16 = REG_VOLTAGE + domain.NUM_IFS
	// published by the battery monitor
	REG_SOC    uint16 = REG_TEMPERATURE + 1
	REG_HEALTH uint16 = REG_SOC + domain.NUM_BATS

	REG_COUNT uint16 = REG_HEALTH + domain.NUM_BATS
)

// Holding register used to request an offset calibration.
const REG_CALIBRATE uint16 = 100

type ADCReading struct {
	// Raw currents, offsets not applied. Batteries first, then loads and panel.
	Current     [domain.NUM_IFS]int16
	Voltage     [domain.NUM_IFS]int16
	Temperature int16
	SoC         [domain.NUM_BATS]int16
	Health      [domain.NUM_BATS]domain.HealthState
}

type ADCReader interface {
	Open() error
	Close() error
	Read() (*ADCReading, error)
	Calibrate() error
}

func decodeReading(regs []uint16) *ADCReading {
	var r ADCReading
	for i := 0; i < domain.NUM_IFS; i++ {
		r.Current[i] = int16(regs[REG_CURRENT+uint16(i)])
		r.Voltage[i] = int16(regs[REG_VOLTAGE+uint16(i)])
	}
	r.Temperature = int16(regs[REG_TEMPERATURE])
	for i := 0; i < domain.NUM_BATS; i++ {
		r.SoC[i] = int16(regs[REG_SOC+uint16(i)])
		health := domain.HealthState(regs[REG_HEALTH+uint16(i)])
		if health > domain.HealthWeak {
			health = domain.HealthFaulty
		}
		r.Health[i] = health
	}
	return &r
}
