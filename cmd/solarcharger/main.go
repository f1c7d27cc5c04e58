package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/solarcharger/internal/adapter/actor"
	"github.com/berfenger/solarcharger/internal/adapter/flash"
	"github.com/berfenger/solarcharger/internal/adapter/measurement"
	"github.com/berfenger/solarcharger/internal/adapter/telemetry"
	"github.com/berfenger/solarcharger/internal/config"
	"github.com/berfenger/solarcharger/internal/core/actor"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/core/port"
	"github.com/berfenger/solarcharger/internal/scheduler"
	"github.com/berfenger/solarcharger/internal/server"
	"github.com/berfenger/solarcharger/internal/util/actorutil"
	"github.com/berfenger/solarcharger/pkg/adc_modbus"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	defer logger.Sync()

	// configuration record
	store := objdic.NewStore(blockStorage(cfg), logger)
	defaulted, err := store.Load()
	if err != nil {
		logger.Error("could not read config block", zap.Error(err))
	}
	logger.Info("configuration loaded", zap.Bool("defaults", defaulted), zap.String("firmware", domain.FIRMWARE_VERSION))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	eventStream := &eventstream.EventStream{}
	sink := telemetry.NewEventStreamSink(eventStream, logger)
	cache := measurement.NewCache()

	measurementProv, err := measurementActorProvider(cfg, cache, store, logger)
	if err != nil {
		panic(err)
	}
	var mqttProv actor.MQTTActorProvider
	if cfg.MQTT.Enable {
		mqttProv = mqttActorProvider(cfg, logger)
	}

	props := actor.SupervisorProps(func() *actor.SupervisorActor {
		return actor.NewSupervisorActor(store, cache, cache, sink, eventStream, measurementProv, mqttProv, logger)
	}, logger)
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_SUPERVISOR)
	if err != nil {
		return
	}

	// cron equalization of wet batteries
	var equalization *scheduler.EqualizationScheduler
	if cfg.Equalization.Enable {
		equalization = scheduler.NewEqualizationScheduler(ctx, pid, store, sink, logger)
		if err := equalization.Start(context.Background(), cfg.Equalization.Cron); err != nil {
			panic(err)
		}
	}

	server := server.NewServer(*cfg, ctx, pid, store)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if equalization != nil {
		equalization.Stop()
	}
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SOLARCHARGER_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SOLARCHARGER_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("solarcharger")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check bounds
	if !cfg.TestADC && cfg.ADCModbusTcp.Host == "" {
		return nil, errors.New("config param adc_modbus_tcp.host is required unless test_adc is set")
	}
	if cfg.ADCModbusTcp.TimeoutMillis < 100 {
		return nil, errors.New("config param adc_modbus_tcp.timeout_millis should be >= 100")
	}
	if !cfg.Flash.InMemory && cfg.Flash.Path == "" {
		return nil, errors.New("config param flash.path is required unless flash.in_memory is set")
	}

	return &cfg, nil
}

func blockStorage(cfg *config.Config) port.BlockStorage {
	if cfg.Flash.InMemory {
		return flash.NewMemPage()
	}
	return flash.NewOsFilePage(cfg.Flash.Path, objdic.CONFIG_BLOCK_SIZE)
}

func measurementActorProvider(cfg *config.Config, cache *measurement.Cache, store *objdic.Store, logger *zap.Logger) (actor.MeasurementActorProvider, error) {
	var reader adc_modbus.ADCReader
	var err error
	if cfg.TestADC {
		reader, err = adc_modbus.CreateTestADCReader()
	} else {
		reader, err = adc_modbus.CreateADCModbusReader(cfg.ADCModbusTcp.Host, cfg.ADCModbusTcp.Port,
			cfg.ADCModbusTcp.UnitId, time.Duration(cfg.ADCModbusTcp.TimeoutMillis)*time.Millisecond, logger, nil)
	}
	if err != nil {
		return nil, err
	}

	return func() *adactor.MeasurementActor {
		return adactor.NewMeasurementActor(reader, cache, store, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("adc_modbus_tcp.port", 502)
	viper.SetDefault("adc_modbus_tcp.unit_id", 1)
	viper.SetDefault("adc_modbus_tcp.timeout_millis", 1000)
	viper.SetDefault("mqtt.enable", true)
	viper.SetDefault("mqtt.base_topic", "solarcharger")
	viper.SetDefault("flash.path", "/data/config.bin")
	viper.SetDefault("flash.in_memory", false)
	viper.SetDefault("equalization.enable", true)
	viper.SetDefault("equalization.cron", "0 0 3 1 * ?")
	viper.SetDefault("test_adc", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
