// Package run executes the full program lifecycle of the registered modules,
// including signal handling.
package run

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/safing/mibis/info"
	"github.com/safing/mibis/log"
	"github.com/safing/mibis/modules"
)

// PrintStackOnExit prints the stack of all goroutines before shutting down.
var PrintStackOnExit bool

// Run starts all modules, waits for an interrupt or a module initiated
// shutdown and then shuts down. It returns the exit code.
func Run() int {
	if err := info.CheckVersion(); err != nil {
		fmt.Fprintf(os.Stderr, "mibis: %s\n", err)
		return 1
	}

	// Start
	err := modules.Start()
	if err != nil {
		if errors.Is(err, modules.ErrCleanExit) {
			return 0
		}

		if PrintStackOnExit {
			printStackTo(os.Stdout)
		}

		_ = modules.Shutdown()
		if code := modules.GetExitStatusCode(); code != 0 {
			return code
		}
		return 1
	}

	// catch interrupt for clean shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer signal.Stop(signalCh)

	select {
	case <-signalCh:
		fmt.Println(" <INTERRUPT>")
		log.Warning("main: program was interrupted, shutting down.")

		forceCnt := 5
		// catch signals during shutdown
		go func() {
			for {
				<-signalCh
				forceCnt--
				if forceCnt > 0 {
					fmt.Printf(" <INTERRUPT> again, but already shutting down. %d more to force.\n", forceCnt)
				} else {
					fmt.Fprintln(os.Stderr, "===== FORCED EXIT =====")
					printStackTo(os.Stderr)
					os.Exit(1)
				}
			}
		}()

		if PrintStackOnExit {
			printStackTo(os.Stdout)
		}

		go func() {
			time.Sleep(3 * time.Minute)
			fmt.Fprintln(os.Stderr, "===== TAKING TOO LONG FOR SHUTDOWN =====")
			printStackTo(os.Stderr)
			os.Exit(1)
		}()

		_ = modules.Shutdown()

	case <-modules.ShuttingDown():
	}

	// wait for shutdown to complete, then exit
	return modules.GetExitStatusCode()
}

func printStackTo(writer io.Writer) {
	fmt.Fprintln(writer, "=== PRINTING TRACES ===")
	fmt.Fprintln(writer, "=== GOROUTINES ===")
	_ = pprof.Lookup("goroutine").WriteTo(writer, 2)
	fmt.Fprintln(writer, "=== BLOCKING ===")
	_ = pprof.Lookup("block").WriteTo(writer, 2)
	fmt.Fprintln(writer, "=== MUTEXES ===")
	_ = pprof.Lookup("mutex").WriteTo(writer, 2)
	fmt.Fprintln(writer, "=== END TRACES ===")
}
