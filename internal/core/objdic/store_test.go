package objdic

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/berfenger/solarcharger/internal/adapter/flash"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLogger = zap.Must(zap.NewDevelopment())

func TestBlockLayout(t *testing.T) {
	require := require.New(t)

	data, err := DefaultRecord().MarshalBinary()
	require.NoError(err)
	require.Len(data, CONFIG_BLOCK_SIZE)

	require.Equal(VALID_BLOCK, data[0])
	// enableSend, measurementSend, debugMessageSend, recording
	require.Equal([]byte{1, 1, 0, 0}, data[1:5])
	// capacity 100 little endian
	require.Equal([]byte{100, 0, 100, 0, 100, 0}, data[5:11])
	// wet, gel, wet
	require.Equal([]byte{0, 1, 0}, data[11:14])
	// first absorption voltage 3763 = 0x0EB3
	require.Equal([]byte{0xB3, 0x0E}, data[14:16])
	// charger delay is the second u32 of the delay group
	require.Equal([]byte{0x00, 0x02, 0x00, 0x00}, data[70:74])
	// current offsets end the record
	require.Equal(make([]byte, 2*domain.NUM_IFS), data[86:RECORD_SIZE])

	for i := RECORD_SIZE; i < CONFIG_BLOCK_SIZE; i++ {
		require.Equal(ERASED_BYTE, data[i], "padding at %d", i)
	}
}

func TestRecordDecodeShortBlock(t *testing.T) {
	var rec Record
	err := rec.UnmarshalBinary(make([]byte, RECORD_SIZE-1))
	require.ErrorIs(t, err, ErrShortBlock)
}

func TestConfigRoundTrip(t *testing.T) {
	require := require.New(t)

	page := flash.NewMemPage()
	store := NewStore(page, testLogger)
	store.SetDefaults()
	require.NoError(store.WriteBlock())
	require.Equal(1, page.Writes)

	fresh := NewStore(page, testLogger)
	// make sure the fresh store does not just hold defaults
	require.NoError(fresh.SetParam(PARAM_ALPHA_V, 0, 1))

	defaulted, err := fresh.Load()
	require.NoError(err)
	require.False(defaulted)
	require.Equal(store.Snapshot(), fresh.Snapshot())
	rec := fresh.Snapshot()
	require.True(rec.Valid())
}

func TestConfigRoundTripModified(t *testing.T) {
	require := require.New(t)

	page := flash.NewMemPage()
	store := NewStore(page, testLogger)
	require.NoError(store.SetBatteryType(1, domain.BatteryTypeAGM))
	require.NoError(store.SetCurrentOffset(domain.NUM_BATS+domain.PANEL, -37))
	require.NoError(store.SetParam(PARAM_CHARGER_DELAY, 0, 1024))
	require.NoError(store.SetParam(PARAM_RECORDING, 0, 1))
	require.NoError(store.WriteBlock())

	fresh := NewStore(page, testLogger)
	_, err := fresh.Load()
	require.NoError(err)

	require.Equal(domain.BatteryTypeAGM, fresh.BatteryType(1))
	require.Equal(int16(3686), fresh.AbsorptionVoltage(1))
	require.Equal(int16(-37), fresh.CurrentOffset(domain.NUM_BATS+domain.PANEL))
	require.Equal(uint32(1024), fresh.ChargerDelay())
	require.True(fresh.IsRecording())
}

func TestLoadMissingBlockUsesDefaults(t *testing.T) {
	require := require.New(t)

	store := NewStore(flash.NewMemPage(), testLogger)
	require.NoError(store.SetParam(PARAM_REST_TIME, 0, 5))

	defaulted, err := store.Load()
	require.NoError(err)
	require.True(defaulted)
	require.Equal(DefaultRecord(), store.Snapshot())
}

func TestLoadInvalidTagUsesDefaults(t *testing.T) {
	require := require.New(t)

	rec := DefaultRecord()
	rec.RestTime = 99
	data, err := rec.MarshalBinary()
	require.NoError(err)
	data[0] = ERASED_BYTE

	page := flash.NewMemPage()
	page.Set(data)
	store := NewStore(page, testLogger)
	defaulted, err := store.Load()
	require.NoError(err)
	require.True(defaulted)
	require.Equal(30*time.Second, store.RestTime())
}

func TestLoadReadErrorUsesDefaults(t *testing.T) {
	require := require.New(t)

	page := flash.NewMemPage()
	page.ReadError = errors.New("bus error")
	store := NewStore(page, testLogger)

	defaulted, err := store.Load()
	require.Error(err)
	require.True(defaulted)
	require.Equal(DefaultRecord(), store.Snapshot())
}

func TestWriteBlockFailure(t *testing.T) {
	require := require.New(t)

	page := flash.NewMemPage()
	page.WriteError = errors.New("erase failed")
	store := NewStore(page, testLogger)

	err := store.WriteBlock()
	require.ErrorIs(err, page.WriteError)
	require.Equal(0, page.Writes)
}

func TestDefaults(t *testing.T) {
	assert := assert.New(t)

	store := NewStore(flash.NewMemPage(), testLogger)
	assert.Equal(domain.BatteryTypeWet, store.BatteryType(0))
	assert.Equal(domain.BatteryTypeGel, store.BatteryType(1))
	assert.Equal(int16(3584), store.AbsorptionVoltage(1))
	assert.Equal(int16(3354), store.FloatVoltage(1))
	// 100Ah / 5 = 20A
	assert.Equal(int16(20*256), store.BulkCurrentLimit(0))
	// 100Ah / 50 = 2A
	assert.Equal(int16(2*256), store.FloatStageCurrent(0))
	assert.Equal(int16(102), store.AlphaV())
	assert.Equal(int16(180), store.AlphaC())
	assert.Equal(uint32(256), store.MinDutyCycle())
	assert.Equal(90*time.Second, store.AbsorptionTime())
	assert.Equal(7200*time.Second, store.FloatTime())
	assert.Equal(512*time.Millisecond, TickDuration(store.WatchdogDelay()))
	assert.Equal(uint32(4096), store.CalibrationDelay())
	assert.Equal(CONTROL_ENABLE_SEND|CONTROL_MEASUREMENT_SEND, store.Controls())
}

func TestChargingBattery(t *testing.T) {
	require := require.New(t)

	store := NewStore(flash.NewMemPage(), testLogger)
	_, ok := store.ChargingBattery()
	require.False(ok)

	require.NoError(store.SetPanelSwitchSetting(2))
	battery, ok := store.ChargingBattery()
	require.True(ok)
	require.Equal(1, battery)

	require.ErrorIs(store.SetPanelSwitchSetting(domain.NUM_BATS+1), ErrValueOutOfRange)
}

func TestSetParamValidation(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		index   int
		value   int64
		wantErr error
	}{
		{"unknown", "nope", 0, 1, ErrUnknownParam},
		{"battery index", PARAM_BATTERY_CAPACITY, domain.NUM_BATS, 50, ErrInvalidBattery},
		{"large capacity", PARAM_BATTERY_CAPACITY, 1, 400, nil},
		{"capacity range", PARAM_BATTERY_CAPACITY, 0, 1 << 16, ErrValueOutOfRange},
		{"negative index", PARAM_FLOAT_VOLTAGE, -1, 3000, ErrInvalidBattery},
		{"alpha range", PARAM_ALPHA_V, 0, 256, ErrValueOutOfRange},
		{"battery type", PARAM_BATTERY_TYPE, 0, 3, ErrValueOutOfRange},
		{"zero delay", PARAM_WATCHDOG_DELAY, 0, 0, ErrValueOutOfRange},
		{"zero duty floor", PARAM_MIN_DUTY_CYCLE, 0, 0, ErrValueOutOfRange},
		{"offset index", PARAM_CURRENT_OFFSET, domain.NUM_IFS - 1, -100, nil},
		{"scalar ignores index", PARAM_LOW_SOC, 7, 50 * 256, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(flash.NewMemPage(), testLogger)
			err := store.SetParam(tt.param, tt.index, tt.value)
			if tt.wantErr == nil {
				require.NoError(t, err)
				v, err := store.Param(tt.param, tt.index)
				require.NoError(t, err)
				require.Equal(t, tt.value, v)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSetBatteryTypeDerivesParameters(t *testing.T) {
	require := require.New(t)

	store := NewStore(flash.NewMemPage(), testLogger)
	require.NoError(store.SetParam(PARAM_ABSORPTION_VOLTAGE, 0, 3000))
	require.NoError(store.SetBatteryChargeParameters(0))
	require.Equal(int16(3763), store.AbsorptionVoltage(0))

	require.NoError(store.SetBatteryType(2, domain.BatteryTypeAGM))
	require.Equal(int16(3405), store.FloatVoltage(2))
	require.Equal(int16(1*256), store.FloatStageCurrent(2))

	require.ErrorIs(store.SetBatteryChargeParameters(3), ErrInvalidBattery)
}

func TestScaledCurrentSaturates(t *testing.T) {
	require := require.New(t)

	store := NewStore(flash.NewMemPage(), testLogger)
	require.NoError(store.SetParam(PARAM_BATTERY_CAPACITY, 0, 400))
	// 400Ah / 5 = 80A
	require.Equal(int16(80*256), store.BulkCurrentLimit(0))

	require.NoError(store.SetParam(PARAM_BATTERY_CAPACITY, 0, 1000))
	require.Equal(int16(math.MaxInt16), store.BulkCurrentLimit(0))
	// 1000Ah / 50 = 20A
	require.Equal(int16(20*256), store.FloatStageCurrent(0))
}

func TestParamsDump(t *testing.T) {
	require := require.New(t)

	store := NewStore(flash.NewMemPage(), testLogger)
	dump := store.Params()
	require.Len(dump, len(ParamNames()))
	require.Equal([]int64{100, 100, 100}, dump[PARAM_BATTERY_CAPACITY])
	require.Len(dump[PARAM_CURRENT_OFFSET], domain.NUM_IFS)
	require.Equal([]int64{512}, dump[PARAM_CHARGER_DELAY])
	require.True(IsIndexed(PARAM_FLOAT_VOLTAGE))
	require.False(IsIndexed(PARAM_FLOAT_TIME))
}
