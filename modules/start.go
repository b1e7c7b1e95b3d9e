package modules

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tevino/abool"

	"github.com/safing/mibis/log"
)

var (
	startComplete       = abool.NewBool(false)
	startCompleteSignal = make(chan struct{})
)

// StartCompleted returns whether starting has completed.
func StartCompleted() bool {
	return startComplete.IsSet()
}

// WaitForStartCompletion returns as soon as starting has completed.
func WaitForStartCompletion() <-chan struct{} {
	return startCompleteSignal
}

// Start preps and starts all modules in the correct order.
func Start() error {
	modulesLock.Lock()
	defer modulesLock.Unlock()

	// inter-link modules
	err := initDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: failed to initialize modules: %s\n", err)
		return err
	}

	// prep modules
	err = prepareModules()
	if err != nil {
		if !errors.Is(err, ErrCleanExit) {
			fmt.Fprintf(os.Stderr, "CRITICAL ERROR: %s\n", err)
		}
		return err
	}

	// start logging
	err = log.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: failed to start logging: %s\n", err)
		return err
	}

	// start modules
	log.Info("modules: initiating...")
	err = startModules()
	if err != nil {
		log.Critical(err.Error())
		return err
	}

	// complete startup
	log.Infof("modules: started %d modules", len(modules))
	if startComplete.SetToIf(false, true) {
		close(startCompleteSignal)
	}

	return nil
}

type report struct {
	module *Module
	err    error
}

func prepareModules() error {
	return runPhase(
		(*Module).ReadyToPrep,
		func(m *Module) error {
			return m.runCtrlFnWithTimeout("prep module", 10*time.Second, m.prep)
		},
		func(m *Module, err error) error {
			if errors.Is(err, ErrCleanExit) {
				return err
			}
			return fmt.Errorf("failed to prep module %s: %w", m.Name, err)
		},
		func(m *Module) {
			m.Prepped.Set()
		},
	)
}

func startModules() error {
	return runPhase(
		(*Module).ReadyToStart,
		func(m *Module) error {
			return m.runCtrlFnWithTimeout("start module", 60*time.Second, m.start)
		},
		func(m *Module, err error) error {
			return fmt.Errorf("modules: could not start module %s: %w", m.Name, err)
		},
		func(m *Module) {
			m.Started.Set()
			log.Infof("modules: started %s", m.Name)
		},
	)
}

// runPhase executes fn on all modules as soon as they are ready, in parallel
// where dependencies allow it.
func runPhase(ready func(*Module) bool, fn func(*Module) error, wrapErr func(*Module, error) error, done func(*Module)) error {
	if len(modules) == 0 {
		return nil
	}

	reports := make(chan *report, len(modules))
	execCnt := 0
	reportCnt := 0

	for {
		// find modules to exec
		for _, m := range modules {
			if ready(m) {
				execCnt++
				m.inTransition.Set()

				execM := m
				go func() {
					reports <- &report{
						module: execM,
						err:    fn(execM),
					}
				}()
			}
		}

		// check for dep loop
		if execCnt == reportCnt {
			return fmt.Errorf("modules: dependency loop detected, cannot continue")
		}

		// wait for reports
		rep := <-reports
		rep.module.inTransition.UnSet()
		if rep.err != nil {
			return wrapErr(rep.module, rep.err)
		}
		reportCnt++
		done(rep.module)

		// exit if done
		if reportCnt == len(modules) {
			return nil
		}
	}
}
