package domain

import "fmt"

const (
	DIAG_TAG_WATCHDOG = "watchdog"
	DIAG_TAG_CHARGER  = "charger"
	DIAG_TAG_CONFIG   = "config"
)

type UpdateEventMixIn struct {
	Id string
}

type UpdateEvent interface {
	UpdateEvent() string
	EventId() string
}

func (e UpdateEventMixIn) UpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e UpdateEventMixIn) EventId() string {
	return e.Id
}

// BatteryStateUpdateEvent is published by the charger once per period and battery.
type BatteryStateUpdateEvent struct {
	UpdateEventMixIn
	Battery         int
	Phase           ChargePhase
	FilteredVoltage int32
	FilteredCurrent int32
	DutyCycle       uint32
	Charging        bool
}

// DiagnosticEvent carries a category tag and a message for the telemetry sink.
type DiagnosticEvent struct {
	UpdateEventMixIn
	Tag     string
	Message string
}

type ConfigChangedEvent struct {
	UpdateEventMixIn
	Param   string
	Battery int
	Value   int64
}

type BridgeStateUpdateEvent struct {
	UpdateEventMixIn
	Value bool
}

func BatteryEventId(battery int) string {
	return fmt.Sprintf("battery_%d", battery+1)
}
