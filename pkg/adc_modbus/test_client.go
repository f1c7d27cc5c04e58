package adc_modbus

import (
	"sync"

	"github.com/berfenger/solarcharger/internal/core/domain"
)

func CreateTestADCReader() (ADCReader, error) {
	return NewTestADCReader(), nil
}

// TestADCReader serves a settable reading without hardware.
type TestADCReader struct {
	mu           sync.Mutex
	reading      ADCReading
	err          error
	calibrations int
}

func NewTestADCReader() *TestADCReader {
	r := &TestADCReader{}
	for i := 0; i < domain.NUM_BATS; i++ {
		r.reading.Voltage[i] = 3300
		r.reading.Current[i] = 512
		r.reading.SoC[i] = 80 * domain.FIXED_POINT_ONE
		r.reading.Health[i] = domain.HealthGood
	}
	r.reading.Voltage[domain.NUM_BATS+domain.PANEL] = 4600
	r.reading.Temperature = 25 * domain.FIXED_POINT_ONE
	return r
}

func (r *TestADCReader) Open() error {
	return nil
}

func (r *TestADCReader) Close() error {
	return nil
}

func (r *TestADCReader) Read() (*ADCReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	reading := r.reading
	return &reading, nil
}

func (r *TestADCReader) Calibrate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrations++
	return nil
}

func (r *TestADCReader) Set(reading ADCReading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reading = reading
}

// SetError makes Read fail until cleared with nil.
func (r *TestADCReader) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *TestADCReader) Calibrations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calibrations
}
