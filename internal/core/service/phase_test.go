package service

import (
	"testing"
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/stretchr/testify/require"
)

const (
	period    = 10 * time.Second
	reference = int16(REFERENCE_TEMPERATURE)
)

func seeded(cc *ChargingContext, voltage, current int32) {
	for i := range cc.Batteries {
		cc.Batteries[i].Seeded = true
		cc.Batteries[i].FilteredVoltage = voltage
		cc.Batteries[i].FilteredCurrent = current
	}
}

func TestStepAdaptsChargingBatteryOnly(t *testing.T) {
	require := require.New(t)

	machine, store, _ := newTestMachine(1)
	require.NoError(store.SetParam(objdic.PARAM_ABSORPTION_VOLTAGE, 0, 3400))
	cc := NewChargingContext(512)
	seeded(cc, 3300, 3000)

	machine.Step(cc, reference, period)

	require.Equal(uint32(560), cc.Batteries[0].DutyCycle)
	require.Equal(domain.PhaseBulk, cc.Batteries[0].Phase)
	require.Equal(uint32(512), cc.Batteries[1].DutyCycle)
	require.Equal(uint32(512), cc.Batteries[2].DutyCycle)
	require.Equal(uint64(1), cc.Periods)
}

func TestStepHoldsUnseededSlot(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(512)

	machine.Step(cc, reference, period)
	require.Equal(uint32(512), cc.Batteries[0].DutyCycle)
	require.Equal(domain.PhaseBulk, cc.Batteries[0].Phase)
}

func TestStepNoBatterySelected(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(0)
	cc := NewChargingContext(512)
	seeded(cc, 3000, 3000)

	machine.Step(cc, reference, period)
	for i := range cc.Batteries {
		require.Equal(uint32(512), cc.Batteries[i].DutyCycle)
		require.Equal(domain.PhaseBulk, cc.Batteries[i].Phase)
	}
}

func TestStepSkipsFaultyAndMissing(t *testing.T) {
	for _, health := range []domain.HealthState{domain.HealthFaulty, domain.HealthMissing} {
		t.Run(health.String(), func(t *testing.T) {
			require := require.New(t)

			machine, _, signals := newTestMachine(2)
			signals.health[1] = health
			cc := NewChargingContext(512)
			seeded(cc, 3000, 3000)

			machine.Step(cc, reference, period)
			require.Equal(uint32(512), cc.Batteries[1].DutyCycle)
		})
	}
}

func TestStepWeakBatteryStillCharges(t *testing.T) {
	require := require.New(t)

	machine, _, signals := newTestMachine(2)
	signals.health[1] = domain.HealthWeak
	cc := NewChargingContext(512)
	seeded(cc, 3000, 3000)

	machine.Step(cc, reference, period)
	require.Equal(uint32(560), cc.Batteries[1].DutyCycle)
}

func TestStepFloorsDutyCycle(t *testing.T) {
	require := require.New(t)

	machine, store, _ := newTestMachine(1)
	require.NoError(store.SetParam(objdic.PARAM_MIN_DUTY_CYCLE, 0, 300))
	cc := NewChargingContext(300)
	// far above the absorption limit: the controller cuts every period
	seeded(cc, 4500, 3000)

	for n := 0; n < 20; n++ {
		machine.Step(cc, reference, period)
		require.GreaterOrEqual(cc.Batteries[0].DutyCycle, uint32(300))
	}
	require.Equal(uint32(300), cc.Batteries[0].DutyCycle)
}

func TestStepCapsDutyCycle(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(25000)
	seeded(cc, 2800, 3000)

	machine.Step(cc, reference, period)
	require.Equal(domain.MAX_DUTY_CYCLE, cc.Batteries[0].DutyCycle)
}

func TestReenterBulkOverride(t *testing.T) {
	require := require.New(t)

	machine, _, signals := newTestMachine(1)
	cc := NewChargingContext(512)
	for i := range cc.Batteries {
		cc.Batteries[i].Phase = domain.PhaseFloat
		cc.Batteries[i].PhaseTime = time.Hour
	}
	signals.soc[0] = 94 * 256
	signals.soc[2] = 10 * 256

	changes := machine.ReenterBulk(cc)
	require.Len(changes, 2)
	require.Equal(domain.PhaseBulk, cc.Batteries[0].Phase)
	require.Equal(time.Duration(0), cc.Batteries[0].PhaseTime)
	require.Equal(domain.PhaseFloat, cc.Batteries[1].Phase)
	require.Equal(domain.PhaseBulk, cc.Batteries[2].Phase)
}

func TestReenterBulkIgnoresOtherPhases(t *testing.T) {
	require := require.New(t)

	machine, _, signals := newTestMachine(1)
	signals.soc = [domain.NUM_BATS]int16{0, 0, 0}
	cc := NewChargingContext(512)
	cc.Batteries[0].Phase = domain.PhaseAbsorption
	cc.Batteries[1].Phase = domain.PhaseRest
	cc.Batteries[2].Phase = domain.PhaseEqualization

	require.Empty(machine.ReenterBulk(cc))
}

func TestBulkToAbsorption(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	seeded(cc, 3763, 3000)

	changes := machine.Step(cc, reference, period)
	require.Equal([]PhaseChange{{Battery: 0, From: domain.PhaseBulk, To: domain.PhaseAbsorption}}, changes)
	require.Equal(period, cc.Batteries[0].PhaseTime)
}

func TestAbsorptionToFloatOnLowCurrent(t *testing.T) {
	require := require.New(t)

	machine, store, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	seeded(cc, 3600, 100)
	cc.Batteries[0].Phase = domain.PhaseAbsorption
	require.Less(int16(100), store.FloatStageCurrent(0))

	for n := 1; n < FLOAT_DELAY_LIMIT; n++ {
		machine.Step(cc, reference, period)
		require.Equal(domain.PhaseAbsorption, cc.Batteries[0].Phase, "period %d", n)
	}
	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseFloat, cc.Batteries[0].Phase)
}

func TestAbsorptionHeldWhileCurrentHigh(t *testing.T) {
	require := require.New(t)

	machine, store, _ := newTestMachine(1)
	require.NoError(store.SetParam(objdic.PARAM_FLOAT_TIME, 0, 600))
	cc := NewChargingContext(512)
	seeded(cc, 3600, 3000)
	cc.Batteries[0].Phase = domain.PhaseAbsorption

	// the 600s float time is reached at the start of the 61st period
	for n := 0; n < 60; n++ {
		machine.Step(cc, reference, period)
		require.Equal(domain.PhaseAbsorption, cc.Batteries[0].Phase)
	}
	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseFloat, cc.Batteries[0].Phase)
}

func TestFloatToRestWhenNotCharging(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	seeded(cc, 3400, 0)
	cc.Batteries[0].Phase = domain.PhaseFloat
	cc.Batteries[1].Phase = domain.PhaseFloat

	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseFloat, cc.Batteries[0].Phase)
	require.Equal(domain.PhaseRest, cc.Batteries[1].Phase)
}

func TestRestToBulk(t *testing.T) {
	require := require.New(t)

	machine, _, signals := newTestMachine(0)
	cc := NewChargingContext(512)
	seeded(cc, 3200, 0)
	cc.Batteries[0].Phase = domain.PhaseRest
	cc.Batteries[1].Phase = domain.PhaseRest
	signals.soc[0] = 60 * 256

	// rest time is 30s
	for n := 0; n < 3; n++ {
		machine.Step(cc, reference, period)
		require.Equal(domain.PhaseRest, cc.Batteries[0].Phase)
	}
	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseBulk, cc.Batteries[0].Phase)
	require.Equal(domain.PhaseRest, cc.Batteries[1].Phase)
}

func TestEqualizationWetOnly(t *testing.T) {
	require := require.New(t)

	machine, store, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	seeded(cc, 3700, 3000)
	cc.Batteries[0].Phase = domain.PhaseFloat
	require.True(machine.RequestEqualization(cc, 0))
	require.False(machine.RequestEqualization(cc, domain.NUM_BATS))

	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseEqualization, cc.Batteries[0].Phase)
	require.False(cc.Batteries[0].EqualizationPending)

	require.NoError(store.SetBatteryType(0, domain.BatteryTypeGel))
	require.NoError(store.SetPanelSwitchSetting(1))
	cc = NewChargingContext(512)
	seeded(cc, 3700, 3000)
	cc.Batteries[0].Phase = domain.PhaseFloat
	machine.RequestEqualization(cc, 0)
	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseFloat, cc.Batteries[0].Phase)
	require.True(cc.Batteries[0].EqualizationPending)
}

func TestEqualizationTarget(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	// above absorption voltage but under the equalization target
	seeded(cc, 3800, 3000)
	cc.Batteries[0].Phase = domain.PhaseEqualization

	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseEqualization, cc.Batteries[0].Phase)
	require.Equal(uint32(560), cc.Batteries[0].DutyCycle)
}

func TestEqualizationEnds(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	seeded(cc, 3800, 3000)
	cc.Batteries[0].Phase = domain.PhaseEqualization
	cc.Batteries[0].PhaseTime = EQUALIZATION_TIME

	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseFloat, cc.Batteries[0].Phase)
}

func TestRestDoesNotDrivePWM(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	cc := NewChargingContext(512)
	seeded(cc, 3000, 0)
	cc.Batteries[0].Phase = domain.PhaseRest

	machine.Step(cc, reference, period)
	require.Equal(uint32(512), cc.Batteries[0].DutyCycle)
}

func TestTwoStageStrategy(t *testing.T) {
	require := require.New(t)

	machine, _, _ := newTestMachine(1)
	machine.SetStrategy(StrategyFor(CHARGER_STRATEGY_TWOSTAGE))
	require.Equal("two_stage", machine.Strategy().Name())

	cc := NewChargingContext(512)
	seeded(cc, 3763, 3000)
	machine.Step(cc, reference, period)
	require.Equal(domain.PhaseFloat, cc.Batteries[0].Phase)

	require.Equal("three_stage", StrategyFor(0).Name())
}
