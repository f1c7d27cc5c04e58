package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a management command to the supervisor request it stands for.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_SET:
		value, err := parseParamValue(cmd.Payload)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", cmd.Param, err)
		}
		return domain.SetParameterRequest{
			Param:   cmd.Param,
			Battery: cmd.Index,
			Value:   value,
		}, nil
	case mqtt.COMMAND_WRITE:
		return domain.WriteConfigBlockRequest{}, nil
	case mqtt.COMMAND_DEFAULTS:
		return domain.ResetConfigDefaultsRequest{}, nil
	case mqtt.COMMAND_EQUALIZE:
		return domain.EqualizationRequest{
			Battery: cmd.Index,
		}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd.Command)
}

func parseParamValue(payload string) (int64, error) {
	switch payload {
	case mqtt.MQTT_PAYLOAD_ON:
		return 1, nil
	case mqtt.MQTT_PAYLOAD_OFF:
		return 0, nil
	}
	return strconv.ParseInt(payload, 10, 64)
}
