// Package appshell provides the small set of utilities every pkd-* binary
// shares: version reporting, fatal-error handling, logging/metrics
// bootstrap, and signal-triggered shutdown, sized for three single-purpose
// CLI binaries rather than a fleet of long-running RPC services.
package appshell

import (
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/metrics"
)

// buildID and buildTime are set by -ldflags at release build time; left
// blank, VersionString falls back to "unknown" for local/dev builds.
var (
	buildID   = ""
	buildTime = ""
)

// VersionString produces a single line reporting binary name, build ID,
// build time, and toolchain version.
func VersionString() string {
	name := path.Base(os.Args[0])
	id, t := buildID, buildTime
	if id == "" {
		id = "unknown"
	}
	if t == "" {
		t = "unknown"
	}
	return fmt.Sprintf("Versions: %s=(%s %s) Golang=(%s)", name, id, t, runtime.Version())
}

func init() {
	for _, v := range os.Args {
		if v == "--version" || v == "-version" {
			fmt.Println(VersionString())
			os.Exit(0)
		}
	}
}

// FailOnError logs err at Audit severity and exits 1 if err is non-nil.
// Every pkd-* binary calls this immediately after any setup step that
// can't be recovered from: config load, DB connect, LDAP bind.
func FailOnError(log logging.Logger, err error, msg string) {
	if err == nil {
		return
	}
	log.AuditErr(err, msg)
	fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
	os.Exit(1)
}

// StatsAndLogging builds the process-wide Logger and metrics Scope,
// installs the Logger as the package-level default so helpers that call
// logging.Get() pick it up, and returns both for explicit injection into
// whatever this binary constructs next.
func StatsAndLogging(tag string, stdoutLevel int) (logging.Logger, metrics.Scope) {
	log := logging.New(tag)
	logging.Set(log)
	scope := metrics.NewPromScope(prometheus.DefaultRegisterer, tag)
	return log, scope
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals blocks until SIGTERM, SIGINT, or SIGHUP, runs callback (if
// non-nil), logs the exit, then terminates the process. Long-running
// binaries (pkd-reconcile in daemon mode) call this from main after
// starting their work in a goroutine.
func CatchSignals(log logging.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	sig := <-sigChan
	log.Info("caught signal", "signal", signalToName[sig])

	if callback != nil {
		callback()
	}

	log.Info("exiting")
	os.Exit(0)
}
