package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {
	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Solar_Charger")
	assert.NoError(err)
	assert.Equal("solar_charger", topic)

	_, err = CheckMQTTTopic("solar/charger")
	assert.Error(err)

	_, err = CheckMQTTTopic("")
	assert.Error(err)
}
