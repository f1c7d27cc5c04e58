package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/berfenger/solarcharger/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

const (
	COMMAND_SET      = "set"
	COMMAND_WRITE    = "write"
	COMMAND_DEFAULTS = "defaults"
	COMMAND_EQUALIZE = "equalize"
)

var ErrInvalidCommand = errors.New("invalid command")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("solarcharger_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:          mqtt.NewClient(opts),
		cfg:             cfg.MQTT,
		setParamRegexp:  setParamCommandExtractor(cfg.MQTT.BaseTopic),
		configCmdRegexp: configCommandExtractor(cfg.MQTT.BaseTopic),
		equalizeRegexp:  equalizeCommandExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client          mqtt.Client
	cfg             config.MQTTConfig
	setParamRegexp  *regexp.Regexp
	configCmdRegexp *regexp.Regexp
	equalizeRegexp  *regexp.Regexp
}

// ParsedMQTTCommand is a management command received on a command topic.
// Index is zero based, topics count batteries and interfaces from 1.
type ParsedMQTTCommand struct {
	Command string
	Param   string
	Index   int
	Payload string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) BatteryStateTopic(battery int) string {
	return fmt.Sprintf("%s/battery/%d/state", c.baseTopic(), battery+1)
}

func (c *MQTTClient) DiagnosticTopic(tag string) string {
	return fmt.Sprintf("%s/diagnostic/%s", c.baseTopic(), tag)
}

func (c *MQTTClient) ConfigStateTopic(param string, index int, indexed bool) string {
	if indexed {
		return fmt.Sprintf("%s/config/%s/%d/state", c.baseTopic(), param, index+1)
	}
	return fmt.Sprintf("%s/config/%s/state", c.baseTopic(), param)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.parseCommand(msg.Topic(), string(msg.Payload()))
}

func (c *MQTTClient) parseCommand(topic, payload string) (*ParsedMQTTCommand, error) {
	if m := c.configCmdRegexp.FindStringSubmatch(topic); m != nil {
		return &ParsedMQTTCommand{
			Command: m[1],
			Payload: payload,
		}, nil
	}
	if m := c.equalizeRegexp.FindStringSubmatch(topic); m != nil {
		index, err := topicIndex(m[1])
		if err != nil {
			return nil, err
		}
		return &ParsedMQTTCommand{
			Command: COMMAND_EQUALIZE,
			Index:   index,
			Payload: payload,
		}, nil
	}
	if m := c.setParamRegexp.FindStringSubmatch(topic); m != nil {
		index := 0
		if m[2] != "" {
			var err error
			if index, err = topicIndex(m[2]); err != nil {
				return nil, err
			}
		}
		return &ParsedMQTTCommand{
			Command: COMMAND_SET,
			Param:   m[1],
			Index:   index,
			Payload: payload,
		}, nil
	}
	return nil, ErrInvalidCommand
}

func topicIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: index %d", ErrInvalidCommand, n)
	}
	return n - 1, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/#", c.baseTopic())
}

func setParamCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/config/([a-z0-9_]+)(?:/([0-9]+))?/set$", baseTopic))
}

func configCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/config/(%s|%s)/command$", baseTopic, COMMAND_WRITE, COMMAND_DEFAULTS))
}

func equalizeCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/equalize/([0-9]+)/command$", baseTopic))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
