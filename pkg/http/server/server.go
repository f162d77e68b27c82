package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// Config carries the listen ports of the three server surfaces: the REST
// API, the raw websocket listener and the http proxy in front of it.
type Config struct {
	Port          int
	WebsocketPort int
	Timeout       time.Duration
	ProxyPort     int
}

// New builds the http server for either the REST surface or, when ws is
// set, the websocket surface. Timeouts come from viper with the write
// timeout stretched by the configured request timeout, scoring a large
// region can hold a response open for a while.
func New(ctx context.Context, handler http.Handler, config Config, ws bool) *http.Server {
	port := config.Port
	if ws {
		port = config.WebsocketPort
	}

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},

		ReadTimeout:       viper.GetDuration("HTTP_SERVER_READ_TIMEOUT"),
		WriteTimeout:      config.Timeout + viper.GetDuration("HTTP_SERVER_WRITE_TIMEOUT"),
		IdleTimeout:       viper.GetDuration("HTTP_SERVER_IDLE_TIMEOUT"),
		ReadHeaderTimeout: viper.GetDuration("HTTP_SERVER_READ_HEADER_TIMEOUT"),
	}
}
