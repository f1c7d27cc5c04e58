package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	ADCModbusTcp ADCModbusTCPConfig `mapstructure:"adc_modbus_tcp"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	Flash        FlashConfig        `mapstructure:"flash"`
	Equalization EqualizationConfig `mapstructure:"equalization"`
	Port         uint               `mapstructure:"port"`
	HttpLog      bool               `mapstructure:"http_log"`
	// TestADC replaces the acquisition board with an in-process reader
	TestADC bool `mapstructure:"test_adc"`
}

type ADCModbusTCPConfig struct {
	Host          string
	Port          uint
	UnitId        uint8  `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MQTTConfig struct {
	Enable    bool
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
}

type FlashConfig struct {
	Path     string
	InMemory bool `mapstructure:"in_memory"`
}

type EqualizationConfig struct {
	Enable bool
	Cron   string
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
