package modules

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tevino/abool"

	"github.com/safing/mibis/log"
)

var (
	shutdownSignal         = make(chan struct{})
	shutdownSignalClosed   = abool.NewBool(false)
	shutdownCompleteSignal = make(chan struct{})

	// ErrShutdownInProgress is returned by Shutdown when it was already called.
	ErrShutdownInProgress = errors.New("shutdown already initiated")
)

// ShuttingDown returns a channel read on the global shutdown signal.
func ShuttingDown() <-chan struct{} {
	return shutdownSignal
}

// IsShuttingDown returns whether the global shutdown is in progress.
func IsShuttingDown() bool {
	return shutdownSignalClosed.IsSet()
}

// Shutdown stops all modules in the correct order.
func Shutdown() error {
	if !shutdownSignalClosed.SetToIf(false, true) {
		return ErrShutdownInProgress
	}
	close(shutdownSignal)

	modulesLock.Lock()
	defer modulesLock.Unlock()

	if startComplete.IsSet() {
		log.Warning("modules: starting shutdown...")
	} else {
		log.Warning("modules: aborting, shutting down...")
	}

	err := stopModules()
	if err != nil {
		log.Errorf("modules: shutdown completed with errors: %s", err)
	} else {
		log.Info("modules: shutdown complete")
	}

	log.Shutdown()
	close(shutdownCompleteSignal)
	return err
}

func stopModules() error {
	var (
		errs      *multierror.Error
		reports   = make(chan *report, len(modules))
		execCnt   int
		reportCnt int
		started   int
	)

	for _, m := range modules {
		if m.Started.IsSet() {
			started++
		} else {
			// modules that never started only get their context canceled
			m.shutdownFlag.Set()
			m.cancelCtx()
		}
	}

	for reportCnt < started {
		for _, m := range modules {
			if m.ReadyToStop() {
				execCnt++
				m.inTransition.Set()

				execM := m
				go func() {
					reports <- &report{
						module: execM,
						err:    execM.shutdown(),
					}
				}()
			}
		}

		if execCnt == reportCnt {
			return multierror.Append(errs, fmt.Errorf("modules: dependency loop detected, cannot continue"))
		}

		rep := <-reports
		rep.module.inTransition.UnSet()
		rep.module.Stopped.Set()
		reportCnt++
		if rep.err != nil {
			errs = multierror.Append(errs, fmt.Errorf("modules: could not stop module %s: %w", rep.module.Name, rep.err))
		} else {
			log.Infof("modules: stopped %s", rep.module.Name)
		}
	}

	return errs.ErrorOrNil()
}
