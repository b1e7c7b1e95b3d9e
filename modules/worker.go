package modules

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/safing/mibis/log"
)

// Default Worker Configuration.
const (
	DefaultBackoffDuration = 2 * time.Second
)

var (
	// ErrRestartNow may be returned (wrapped) by service workers to request an immediate restart.
	ErrRestartNow = errors.New("requested restart")
	errNoModule   = errors.New("missing module (is nil!)")
)

// StartWorker starts a generic worker in a new goroutine and returns
// immediately. Errors are logged.
func (m *Module) StartWorker(name string, fn func(context.Context) error) {
	if m == nil {
		log.Errorf(`modules: cannot start worker "%s" with nil module`, name)
		return
	}

	m.addWorker()
	go func() {
		defer m.finishWorker()

		err := m.runWorker(name, fn)
		switch {
		case err == nil:
			return
		case errors.Is(err, context.Canceled):
			log.Debugf("%s: worker %s was canceled: %s", m.Name, name, err)
		default:
			log.Errorf("%s: worker %s failed: %s", m.Name, name, err)
		}
	}()
}

// RunWorker runs a generic worker and blocks until it is finished.
func (m *Module) RunWorker(name string, fn func(context.Context) error) error {
	if m == nil {
		log.Errorf(`modules: cannot start worker "%s" with nil module`, name)
		return errNoModule
	}

	m.addWorker()
	defer m.finishWorker()

	return m.runWorker(name, fn)
}

// StartServiceWorker starts a generic worker, which is automatically
// restarted in case of an error. `backoffDuration` specifies how long to wait
// before restarts, multiplied by the number of failed attempts. Pass `0` for
// the default backoff duration.
// Returning nil error or context.Canceled will stop the service worker.
func (m *Module) StartServiceWorker(name string, backoffDuration time.Duration, fn func(context.Context) error) {
	if m == nil {
		log.Errorf(`modules: cannot start service worker "%s" with nil module`, name)
		return
	}

	m.addWorker()
	go m.runServiceWorker(name, backoffDuration, fn)
}

func (m *Module) runServiceWorker(name string, backoffDuration time.Duration, fn func(context.Context) error) {
	defer m.finishWorker()

	if backoffDuration == 0 {
		backoffDuration = DefaultBackoffDuration
	}
	failCnt := 0
	lastFail := time.Now()

	for {
		if m.ShutdownInProgress() {
			return
		}

		err := m.runWorker(name, fn)
		switch {
		case err == nil:
			// No error means that the worker is finished.
			return

		case errors.Is(err, context.Canceled):
			// A canceled context also means that the worker is finished.
			return

		case errors.Is(err, ErrRestartNow):
			// Worker requested a restart - silently continue with loop.

		default:
			// Reset fail counter if running without error for some time.
			if time.Now().Add(-5 * time.Minute).After(lastFail) {
				failCnt = 0
			}
			failCnt++
			lastFail = time.Now()

			sleepFor := time.Duration(failCnt) * backoffDuration
			log.Errorf("%s: service-worker %s failed (%d): %s - restarting in %s", m.Name, name, failCnt, err, sleepFor)
			select {
			case <-time.After(sleepFor):
			case <-m.Ctx.Done():
				return
			}
		}
	}
}

func (m *Module) addWorker() {
	atomic.AddInt32(m.workerCnt, 1)
	m.workerGroup.Add(1)
}

func (m *Module) finishWorker() {
	atomic.AddInt32(m.workerCnt, -1)
	m.workerGroup.Done()
}

func (m *Module) runWorker(name string, fn func(context.Context) error) (err error) {
	defer Recoverf(m, &err, name, "worker")

	return fn(m.Ctx)
}

func (m *Module) runCtrlFnWithTimeout(name string, timeout time.Duration, fn func() error) error {
	ctrlFnError := make(chan error, 1)
	go func() {
		ctrlFnError <- m.runCtrlFn(name, fn)
	}()

	// wait for results
	select {
	case err := <-ctrlFnError:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timed out (%s)", timeout)
	}
}

func (m *Module) runCtrlFn(name string, fn func() error) (err error) {
	defer Recoverf(m, &err, name, "module-control")

	return fn()
}
