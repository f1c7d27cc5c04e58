package util

import (
	"github.com/berfenger/solarcharger/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		ADCModbusTcp: config.ADCModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "solarcharger",
		},
		Flash: config.FlashConfig{
			InMemory: true,
		},
		Equalization: config.EqualizationConfig{
			Cron: "0 0 3 1 * ?",
		},
		Port:    8080,
		TestADC: true,
	}
}
