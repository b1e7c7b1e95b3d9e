package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/safing/mibis/log"
)

var (
	mainRouter = newRouter()

	server     *http.Server
	serverLock sync.Mutex
)

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger, ModuleWorker)
	return router
}

// RegisterHandler registers a handler with the API router.
func RegisterHandler(path string, handler http.Handler) *mux.Route {
	return mainRouter.Handle(path, handler)
}

// RegisterHandleFunc registers a handle function with the API router.
func RegisterHandleFunc(path string, handleFunc func(http.ResponseWriter, *http.Request)) *mux.Route {
	return mainRouter.HandleFunc(path, handleFunc)
}

// RequestLogger is a logging middleware.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ew := NewEnrichedResponseWriter(w)
		next.ServeHTTP(ew, r)
		log.Debugf("api request: %s %d %s %s", r.RemoteAddr, ew.Status, r.RequestURI, time.Since(started))
	})
}

// ModuleWorker is an http middleware that wraps the request in a module
// worker, so that shutdown waits for running requests.
func ModuleWorker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = module.RunWorker("http request", func(_ context.Context) error {
			next.ServeHTTP(w, r)
			return nil
		})
	})
}

func startServer() {
	serverLock.Lock()
	defer serverLock.Unlock()

	address := listenAddressConfig()
	server = &http.Server{
		Addr:              address,
		Handler:           mainRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := server

	module.StartServiceWorker("http server", 0, func(ctx context.Context) error {
		log.Infof("api: starting to listen on %s", address)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) || module.ShutdownInProgress() {
			return nil
		}
		log.Errorf("api: failed to listen on %s: %s", address, err)
		return err
	})
}

func stopServer() error {
	serverLock.Lock()
	defer serverLock.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
