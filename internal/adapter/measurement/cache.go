package measurement

import (
	"sync/atomic"
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"
	"github.com/berfenger/solarcharger/pkg/adc_modbus"
)

// Snapshot is one complete acquisition. It is never modified once stored.
type Snapshot struct {
	Reading adc_modbus.ADCReading
	Time    time.Time
}

// Cache holds the latest acquisition for the charging loop.
// Readers always see a whole snapshot.
type Cache struct {
	snap atomic.Pointer[Snapshot]
}

var _ port.SampleSource = (*Cache)(nil)
var _ port.BatterySignals = (*Cache)(nil)

// NewCache starts with every battery missing, so nothing charges before the first acquisition.
func NewCache() *Cache {
	c := &Cache{}
	var initial Snapshot
	for i := range initial.Reading.Health {
		initial.Reading.Health[i] = domain.HealthMissing
	}
	initial.Reading.Temperature = 25 * domain.FIXED_POINT_ONE
	c.snap.Store(&initial)
	return c
}

func (c *Cache) Update(reading adc_modbus.ADCReading, at time.Time) {
	c.snap.Store(&Snapshot{Reading: reading, Time: at})
}

func (c *Cache) Snapshot() Snapshot {
	return *c.snap.Load()
}

// Samples returns the battery channels of the latest acquisition.
// Nothing is present before the first acquisition.
func (c *Cache) Samples() domain.BatterySamples {
	snap := c.snap.Load()
	r := &snap.Reading
	var s domain.BatterySamples
	copy(s.Current[:], r.Current[:domain.NUM_BATS])
	copy(s.Voltage[:], r.Voltage[:domain.NUM_BATS])
	if snap.Time.IsZero() {
		return s
	}
	for i := range s.Present {
		s.Present[i] = r.Health[i] != domain.HealthMissing
	}
	return s
}

func (c *Cache) BatteryCurrent(battery int) int16 {
	return c.snap.Load().Reading.Current[battery]
}

func (c *Cache) BatteryVoltage(battery int) int16 {
	return c.snap.Load().Reading.Voltage[battery]
}

func (c *Cache) Temperature() int16 {
	return c.snap.Load().Reading.Temperature
}

func (c *Cache) SoC(battery int) int16 {
	return c.snap.Load().Reading.SoC[battery]
}

func (c *Cache) Health(battery int) domain.HealthState {
	return c.snap.Load().Reading.Health[battery]
}
