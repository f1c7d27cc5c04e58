package service

import (
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"
	"go.uber.org/zap"
)

// equalization runs this far above the absorption voltage, times 256
const EQUALIZATION_VOLTAGE_OFFSET int16 = 128

type PhaseChange struct {
	Battery int
	From    domain.ChargePhase
	To      domain.ChargePhase
}

// ChargingStateMachine owns the phase of every battery. Transition policy comes from the strategy,
// the float to bulk override and the duty cycle bounds are enforced here for every strategy.
type ChargingStateMachine struct {
	params   port.ChargingParams
	signals  port.BatterySignals
	selector port.ChargeSelector
	strategy port.ChargingStrategy
	logger   *zap.Logger
}

func NewChargingStateMachine(params port.ChargingParams, signals port.BatterySignals, selector port.ChargeSelector,
	strategy port.ChargingStrategy, logger *zap.Logger) *ChargingStateMachine {
	return &ChargingStateMachine{
		params:   params,
		signals:  signals,
		selector: selector,
		strategy: strategy,
		logger:   logger,
	}
}

func (m *ChargingStateMachine) Strategy() port.ChargingStrategy {
	return m.strategy
}

func (m *ChargingStateMachine) SetStrategy(strategy port.ChargingStrategy) {
	if strategy.Name() != m.strategy.Name() {
		m.logger.Info("charging strategy changed", zap.String("from", m.strategy.Name()), zap.String("to", strategy.Name()))
	}
	m.strategy = strategy
}

// ReenterBulk moves every Float battery whose SoC fell below the float to bulk threshold back to Bulk.
// It overrides any strategy decision.
func (m *ChargingStateMachine) ReenterBulk(cc *ChargingContext) []PhaseChange {
	var changes []PhaseChange
	threshold := m.params.FloatBulkSoC()
	for i := range cc.Batteries {
		state := &cc.Batteries[i]
		if state.Phase == domain.PhaseFloat && m.signals.SoC(i) < threshold {
			changes = append(changes, setPhase(i, state, domain.PhaseBulk))
		}
	}
	return changes
}

// RequestEqualization marks a pending equalization. The strategy decides when it starts.
func (m *ChargingStateMachine) RequestEqualization(cc *ChargingContext, battery int) bool {
	if battery < 0 || battery >= domain.NUM_BATS {
		return false
	}
	cc.Batteries[battery].EqualizationPending = true
	return true
}

// Step runs one period over the already filtered context. Only the battery designated for
// charging drives the duty cycle.
func (m *ChargingStateMachine) Step(cc *ChargingContext, temperature int16, period time.Duration) []PhaseChange {
	var changes []PhaseChange
	chargingBattery, selected := m.selector.ChargingBattery()
	minDuty := m.params.MinDutyCycle()

	for i := range cc.Batteries {
		state := &cc.Batteries[i]
		charging := selected && i == chargingBattery && state.Seeded && m.eligible(i)

		if state.FilteredCurrent < int32(m.params.FloatStageCurrent(i)) {
			if state.LowCurrentCount < ^uint16(0) {
				state.LowCurrentCount++
			}
		} else {
			state.LowCurrentCount = 0
		}

		next := m.strategy.NextPhase(port.PhaseInput{
			Battery:         i,
			State:           *state,
			Charging:        charging,
			SoC:             m.signals.SoC(i),
			AbsorptionLimit: EffectiveLimit(m.params.AbsorptionVoltage(i), temperature),
			Params:          m.params,
		})
		if next != state.Phase {
			changes = append(changes, setPhase(i, state, next))
		}

		if charging {
			if target, ok := m.target(i, state.Phase); ok {
				AdaptDutyCycle(state.FilteredVoltage, target, temperature, &state.DutyCycle)
			}
		}
		state.DutyCycle = boundDutyCycle(state.DutyCycle, minDuty)
		state.PhaseTime += period
	}
	cc.Periods++
	return changes
}

// Faulty and missing batteries are never charged.
func (m *ChargingStateMachine) eligible(battery int) bool {
	health := m.signals.Health(battery)
	return health != domain.HealthFaulty && health != domain.HealthMissing
}

func (m *ChargingStateMachine) target(battery int, phase domain.ChargePhase) (int16, bool) {
	switch phase {
	case domain.PhaseBulk, domain.PhaseAbsorption:
		return m.params.AbsorptionVoltage(battery), true
	case domain.PhaseFloat:
		return m.params.FloatVoltage(battery), true
	case domain.PhaseEqualization:
		return saturate16(int32(m.params.AbsorptionVoltage(battery)) + int32(EQUALIZATION_VOLTAGE_OFFSET)), true
	}
	return 0, false
}

func boundDutyCycle(duty uint32, minDuty uint32) uint32 {
	if duty < minDuty {
		duty = minDuty
	}
	if duty > domain.MAX_DUTY_CYCLE {
		duty = domain.MAX_DUTY_CYCLE
	}
	return duty
}

func setPhase(battery int, state *domain.BatteryChargeState, phase domain.ChargePhase) PhaseChange {
	change := PhaseChange{Battery: battery, From: state.Phase, To: phase}
	state.Phase = phase
	state.PhaseTime = 0
	state.LowCurrentCount = 0
	if phase == domain.PhaseEqualization {
		state.EqualizationPending = false
	}
	return change
}
