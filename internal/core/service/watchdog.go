package service

import "sync/atomic"

// periods the charger may miss before a restart, in charger periods
const WATCHDOG_MISSED_PERIODS = 10

// Watchdog counts supervisory checks since the charging loop last completed a period.
// Check and Reset may run concurrently.
type Watchdog struct {
	counter   atomic.Uint32
	threshold atomic.Uint32
}

func NewWatchdog(chargerDelay, watchdogDelay uint32) *Watchdog {
	w := &Watchdog{}
	w.SetDelays(chargerDelay, watchdogDelay)
	return w
}

// WatchdogThreshold is the number of checks tolerated without a reset, at least one.
func WatchdogThreshold(chargerDelay, watchdogDelay uint32) uint32 {
	if watchdogDelay == 0 {
		return 1
	}
	t := uint32(uint64(WATCHDOG_MISSED_PERIODS) * uint64(chargerDelay) / uint64(watchdogDelay))
	if t < 1 {
		return 1
	}
	return t
}

func (w *Watchdog) SetDelays(chargerDelay, watchdogDelay uint32) {
	w.threshold.Store(WatchdogThreshold(chargerDelay, watchdogDelay))
}

// Reset is called by the charging loop once per completed period.
func (w *Watchdog) Reset() {
	w.counter.Store(0)
}

// Check counts one supervisory check and reports a stall once the counter exceeds the threshold.
func (w *Watchdog) Check() bool {
	return w.counter.Add(1) > w.threshold.Load()
}

func (w *Watchdog) Count() uint32 {
	return w.counter.Load()
}

func (w *Watchdog) Threshold() uint32 {
	return w.threshold.Load()
}
