package service

import (
	"github.com/berfenger/solarcharger/internal/adapter/flash"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"go.uber.org/zap"
)

var logger = zap.Must(zap.NewDevelopment())

type fakeSignals struct {
	soc    [domain.NUM_BATS]int16
	health [domain.NUM_BATS]domain.HealthState
}

func (f *fakeSignals) SoC(battery int) int16 {
	return f.soc[battery]
}

func (f *fakeSignals) Health(battery int) domain.HealthState {
	return f.health[battery]
}

func fullSignals() *fakeSignals {
	return &fakeSignals{
		soc: [domain.NUM_BATS]int16{100 * 256, 100 * 256, 100 * 256},
	}
}

func newTestStore() *objdic.Store {
	return objdic.NewStore(flash.NewMemPage(), logger)
}

// charging battery is 1 based, 0 selects none
func newTestMachine(chargingBattery uint8) (*ChargingStateMachine, *objdic.Store, *fakeSignals) {
	store := newTestStore()
	if err := store.SetPanelSwitchSetting(chargingBattery); err != nil {
		panic(err)
	}
	signals := fullSignals()
	return NewChargingStateMachine(store, signals, store, ThreeStageStrategy{}, logger), store, signals
}

func samplesOf(voltage int16, current int16) domain.BatterySamples {
	var s domain.BatterySamples
	for i := range s.Voltage {
		s.Voltage[i] = voltage
		s.Current[i] = current
		s.Present[i] = true
	}
	return s
}
