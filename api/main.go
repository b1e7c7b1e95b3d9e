// Package api serves random bytes, the status of the conditioner and a
// websocket stream of its output over HTTP.
package api

import (
	"sync"

	"github.com/safing/mibis/modules"
)

var (
	module *modules.Module

	registerOnce sync.Once
	registerErr  error

	endpointsOnce sync.Once
	endpointsErr  error
)

func init() {
	module = modules.Register("api", prep, start, stop, "trng")
}

func prep() error {
	if err := RegisterConfig(); err != nil {
		return err
	}

	endpointsOnce.Do(func() {
		endpointsErr = registerEndpoints()
	})
	return endpointsErr
}

// RegisterConfig registers the API options. It may be called multiple times.
func RegisterConfig() error {
	registerOnce.Do(func() {
		registerErr = registerConfig()
	})
	return registerErr
}

func start() error {
	startServer()
	return nil
}

func stop() error {
	return stopServer()
}
