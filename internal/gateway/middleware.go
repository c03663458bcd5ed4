package gateway

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

func newID() string { return uuid.NewString() }

// requestID returns the id assigned by the RequestID middleware.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// requestLogger writes one line per request and feeds the observer. Errors
// are rendered by the error handler before the line is written, so the
// logged status is the one the caller saw.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		HandleError:   true,
		LogStatus:     true,
		LogMethod:     true,
		LogURI:        true,
		LogRoutePath:  true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogRequestID:  true,
		LogError:      true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if s.deps.Observer != nil {
				s.deps.Observer.ObserveRequest(v.Method, routeLabel(v.RoutePath), v.Status, v.Latency)
			}

			var evt *zerolog.Event
			switch {
			case v.Status >= 500:
				evt = s.logger.Error()
			case v.Status >= 400:
				evt = s.logger.Warn()
			default:
				evt = s.logger.Info()
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID)
			if v.Error != nil {
				evt = evt.Err(v.Error)
			}
			evt.Msg("request served")
			return nil
		},
	})
}

// routeLabel keeps unmatched paths from creating one metric series each.
func routeLabel(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}
