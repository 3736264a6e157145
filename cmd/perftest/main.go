// main.go — Entry point for the perftest daemon binary.
//
// Usage: perftest <command> [options]
//
// Commands:
//   start-daemon <token>   start the perftest process
//   help                   print help messages
//
// Exit codes:
//   0 = success
//   1 = error (start failed, unknown command)
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/openharmony/perftest/internal/connection"
	"github.com/openharmony/perftest/internal/daemon"
)

const usageText = `usage: perftest <command> [options]
help                                                                                    print help messages
start-daemon <token>                                                             start the perftest process
`

const (
	defaultObservabilityPort = 7911
	daemonizedEnv            = "PERFTEST_DAEMONIZED"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the entry point, separated for testability. Returns the exit code.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Missing argument")
		fmt.Fprint(os.Stderr, usageText)
		return 1
	}
	switch args[0] {
	case "start-daemon":
		token := ""
		extra := []string{}
		if len(args) > 1 {
			token = args[1]
		}
		if len(args) > 2 {
			extra = args[2:]
		}
		if startDaemon(token, extra) != nil {
			fmt.Fprintln(os.Stderr, "Start daemon failed")
			return 1
		}
		return 0
	case "help":
		fmt.Print(usageText)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Illegal argument: %s\n", args[0])
		fmt.Fprint(os.Stderr, usageText)
		return 1
	}
}

// startDaemon detaches into the background (unless --foreground) and runs
// the daemon until its peer dies.
func startDaemon(token string, extra []string) error {
	if token == "" {
		return fmt.Errorf("empty transaction token")
	}
	foreground := false
	port := defaultObservabilityPort
	for i := 0; i < len(extra); i++ {
		switch extra[i] {
		case "--foreground":
			foreground = true
		case "--port":
			if i+1 < len(extra) {
				i++
				if _, err := fmt.Sscanf(extra[i], "%d", &port); err != nil {
					return fmt.Errorf("invalid port %q", extra[i])
				}
			}
		}
	}
	if !foreground && os.Getenv(daemonizedEnv) == "" {
		return detach()
	}
	return daemon.Run(daemon.Options{
		Token: token,
		Port:  port,
		Hub:   connection.NewEventHub(),
	})
}

// detach re-executes the binary as a session leader with stdio on /dev/null.
func detach() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devNull.Close()
	cmd := exec.Command(executable, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonizedEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
