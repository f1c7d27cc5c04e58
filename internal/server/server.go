package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/solarcharger/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

// ParamSource dumps the configuration record by parameter name.
type ParamSource interface {
	Params() map[string][]int64
}

type Server struct {
	port            uint
	httpLog         bool
	rootContext     *actor.RootContext
	supervisorActor *actor.PID
	params          ParamSource
	requestTimeout  time.Duration
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, supervisorActor *actor.PID, params ParamSource) *http.Server {
	NewServer := &Server{
		port:            cfg.Port,
		rootContext:     rootContext,
		supervisorActor: supervisorActor,
		params:          params,
		httpLog:         cfg.HttpLog,
		requestTimeout:  10 * time.Second,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
