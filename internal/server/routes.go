package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type batteryStatus struct {
	Battery             int    `json:"battery"`
	Phase               string `json:"phase"`
	Voltage             int32  `json:"voltage"`
	Current             int32  `json:"current"`
	DutyCycle           uint32 `json:"duty_cycle"`
	PhaseSeconds        int64  `json:"phase_seconds"`
	EqualizationPending bool   `json:"equalization_pending"`
}

type statusResponse struct {
	Version         string          `json:"version"`
	Firmware        string          `json:"firmware"`
	Restarts        uint32          `json:"restarts"`
	Restarting      bool            `json:"restarting"`
	ChargingBattery int             `json:"charging_battery"`
	Periods         uint64          `json:"periods"`
	Batteries       []batteryStatus `json:"batteries"`
}

type setParamBody struct {
	Index int   `json:"index"`
	Value int64 `json:"value"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)
	e.GET("/config", s.ConfigHandler)
	e.PUT("/config/:param", s.SetParamHandler)
	e.POST("/config/write", s.WriteConfigHandler)
	e.POST("/config/defaults", s.ResetDefaultsHandler)
	e.POST("/equalize/:battery", s.EqualizeHandler)

	return e
}

func (s *Server) request(msg any) (any, error) {
	return s.rootContext.RequestFuture(s.supervisorActor, msg, s.requestTimeout).Result()
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.request(domain.ActorHealthRequest{})
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.request(domain.GetSupervisorStateRequest{})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	supervisor := res.(domain.GetSupervisorStateResponse)
	status := statusResponse{
		Version:         versioninfo.Short(),
		Firmware:        domain.FIRMWARE_VERSION,
		Restarts:        supervisor.Restarts,
		Restarting:      supervisor.Restarting,
		ChargingBattery: -1,
	}
	if !supervisor.Restarting {
		res, err = s.request(domain.GetChargerStateRequest{})
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		charger := res.(domain.GetChargerStateResponse)
		if charger.HasResponseError() {
			return echo.NewHTTPError(http.StatusServiceUnavailable, charger.GetResponseError().Error())
		}
		status.ChargingBattery = charger.ChargingBattery
		status.Periods = charger.Periods
		for i, b := range charger.States {
			status.Batteries = append(status.Batteries, batteryStatus{
				Battery:             i + 1,
				Phase:               b.Phase.String(),
				Voltage:             b.FilteredVoltage,
				Current:             b.FilteredCurrent,
				DutyCycle:           b.DutyCycle,
				PhaseSeconds:        int64(b.PhaseTime.Seconds()),
				EqualizationPending: b.EqualizationPending,
			})
		}
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) ConfigHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.params.Params())
}

func (s *Server) SetParamHandler(c echo.Context) error {
	var body setParamBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.request(domain.SetParameterRequest{
		Param:   c.Param("param"),
		Battery: body.Index,
		Value:   body.Value,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if resp := res.(domain.SetParameterResponse); resp.HasResponseError() {
		return paramError(resp.GetResponseError())
	}
	return c.NoContent(http.StatusNoContent)
}

func paramError(err error) error {
	switch {
	case errors.Is(err, objdic.ErrUnknownParam):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, objdic.ErrValueOutOfRange), errors.Is(err, objdic.ErrInvalidBattery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (s *Server) WriteConfigHandler(c echo.Context) error {
	res, err := s.request(domain.WriteConfigBlockRequest{})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if resp := res.(domain.WriteConfigBlockResponse); resp.HasResponseError() {
		return echo.NewHTTPError(http.StatusInternalServerError, resp.GetResponseError().Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ResetDefaultsHandler(c echo.Context) error {
	if _, err := s.request(domain.ResetConfigDefaultsRequest{}); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// EqualizeHandler takes the battery number counted from 1.
func (s *Server) EqualizeHandler(c echo.Context) error {
	battery, err := strconv.Atoi(c.Param("battery"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.request(domain.EqualizationRequest{Battery: battery - 1})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp := res.(domain.EqualizationResponse)
	if resp.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, resp.GetResponseError().Error())
	}
	if !resp.Accepted {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid battery")
	}
	return c.NoContent(http.StatusAccepted)
}
