// Package logging provides the audit logger used by every subsystem of the
// PKD mirror. It is modeled on the conventional Boulder-style AuditLogger:
// a small set of named severities (Debug/Info/Notice/Warning/Audit) rather
// than a single generic Log call, so call sites read as a severity
// declaration first and a message second. Unlike the historical syslog
// backend, this one is backed by logr/stdr, which is what this repo's
// dependency set actually carries.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Logger is the interface every package in this module takes instead of a
// concrete type, so tests can substitute a recording logger.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Notice(msg string, kv ...interface{})
	Warning(msg string, kv ...interface{})
	Audit(msg string, kv ...interface{})
	AuditErr(err error, msg string, kv ...interface{})
}

// auditLogger is the default Logger implementation, wrapping a logr.Logger.
type auditLogger struct {
	base logr.Logger
	tag  string
}

// New constructs a Logger that writes structured lines tagged with tag
// (typically the binary name, e.g. "pkd-ingest") to stderr via the
// standard library's log package, through logr/stdr's adapter.
func New(tag string) Logger {
	stdLog := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	base := stdr.New(stdLog)
	return &auditLogger{base: base.WithName(tag), tag: tag}
}

func (a *auditLogger) Debug(msg string, kv ...interface{}) {
	a.base.V(1).Info(msg, kv...)
}

func (a *auditLogger) Info(msg string, kv ...interface{}) {
	a.base.V(0).Info(msg, kv...)
}

func (a *auditLogger) Notice(msg string, kv ...interface{}) {
	a.base.WithValues("severity", "notice").Info(msg, kv...)
}

func (a *auditLogger) Warning(msg string, kv ...interface{}) {
	a.base.WithValues("severity", "warning").Info(msg, kv...)
}

// Audit records an event that must survive for compliance review: upload
// acceptance/rejection, reconciliation run outcomes, PA verification
// results.
func (a *auditLogger) Audit(msg string, kv ...interface{}) {
	a.base.WithValues("severity", "audit").Info(msg, kv...)
}

func (a *auditLogger) AuditErr(err error, msg string, kv ...interface{}) {
	a.base.WithValues("severity", "audit").Error(err, msg, kv...)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = New("pkdmirror")
)

// Set installs l as the process-wide default logger, returning the
// previous one.
func Set(l Logger) Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultLogger
	defaultLogger = l
	return prev
}

// Get returns the process-wide default logger.
func Get() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// RecordingLogger is a test double that appends every call to Lines,
// letting tests assert on audit-trail content without a real sink.
type RecordingLogger struct {
	mu    sync.Mutex
	Lines []string
}

func (r *RecordingLogger) append(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, fmt.Sprintf("[%s] %s", level, msg))
}

func (r *RecordingLogger) Debug(msg string, kv ...interface{})   { r.append("debug", msg) }
func (r *RecordingLogger) Info(msg string, kv ...interface{})    { r.append("info", msg) }
func (r *RecordingLogger) Notice(msg string, kv ...interface{})  { r.append("notice", msg) }
func (r *RecordingLogger) Warning(msg string, kv ...interface{}) { r.append("warning", msg) }
func (r *RecordingLogger) Audit(msg string, kv ...interface{})   { r.append("audit", msg) }
func (r *RecordingLogger) AuditErr(err error, msg string, kv ...interface{}) {
	r.append("audit-err", fmt.Sprintf("%s: %v", msg, err))
}
