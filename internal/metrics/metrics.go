// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_logins_total", Help: "Sign-in attempts by method and result"},
		[]string{"method", "result"},
	)
	CodesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_codes_issued_total", Help: "Verification codes issued by purpose"},
		[]string{"purpose"},
	)
	TokenRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_token_refresh_total", Help: "Access token refreshes by result"},
		[]string{"result"},
	)
)

// MustRegister registers all collectors with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(RequestsTotal, ReqDuration, InFlight, LoginsTotal, CodesIssued, TokenRefresh)
}

// Login counts a sign-in attempt.
func Login(method string, ok bool) {
	LoginsTotal.WithLabelValues(method, result(ok)).Inc()
}

// Refresh counts a refresh attempt.
func Refresh(ok bool) {
	TokenRefresh.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// Middleware records request count, latency and in-flight requests per
// route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			InFlight.Inc()
			defer InFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			RequestsTotal.WithLabelValues(route, method, status).Inc()
			ReqDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
