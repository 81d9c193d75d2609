// eventlog.go: Event logging collaborator for Aegis
//
// This is the logging subsystem that setting callbacks mutate: destination
// flags, log path, record format, severity thresholds, length caps,
// timestamp format, hostname omission and mail settings all live here.
//
// Features:
// - Pluggable persistence backends (line-oriented file, JSONL, SQLite)
// - Buffered writes with background flushing
// - Warning severities that distinguish audit-worthy from informational
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// DestFlags is the set of enabled log destinations. The syslog and file
// destinations are independent bits: enabling one must never clobber the
// other, which the logfile/syslog setting callbacks rely on.
type DestFlags uint8

const (
	// DestSyslog routes accepted/rejected events to the system log.
	DestSyslog DestFlags = 1 << iota
	// DestFile routes events to the configured log path.
	DestFile
)

// DestNone disables event logging entirely.
const DestNone DestFlags = 0

// LogFormat selects the on-disk record format.
type LogFormat int

const (
	// FormatSudo is the traditional single-line record format.
	FormatSudo LogFormat = iota
	// FormatJSON emits one JSON object per record.
	FormatJSON
)

// Priority is a syslog-style severity level.
type Priority int

const (
	PriorityEmerg Priority = iota
	PriorityAlert
	PriorityCrit
	PriorityErr
	PriorityWarning
	PriorityNotice
	PriorityInfo
	PriorityDebug
)

var priorityNames = map[string]Priority{
	"emerg":   PriorityEmerg,
	"alert":   PriorityAlert,
	"crit":    PriorityCrit,
	"err":     PriorityErr,
	"warning": PriorityWarning,
	"notice":  PriorityNotice,
	"info":    PriorityInfo,
	"debug":   PriorityDebug,
}

// ParsePriority maps a syslog priority name to its level.
func ParsePriority(name string) (Priority, bool) {
	p, ok := priorityNames[name]
	return p, ok
}

func (p Priority) String() string {
	for name, pri := range priorityNames {
		if pri == p {
			return name
		}
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// WarnFlags qualifies a warning emitted during setting application.
type WarnFlags uint8

const (
	// WarnAudit marks the warning as audit-worthy: it is persisted
	// through the active backend in addition to stderr.
	WarnAudit WarnFlags = 1 << iota
	// WarnParseError tags the warning as a policy parse problem.
	WarnParseError
	// WarnRawMsg emits the message text as-is, without the usual
	// source decoration. Raw messages never enter the audit trail
	// unless WarnAudit is also set.
	WarnRawMsg
	// WarnNoLog suppresses persistence entirely; the warning is
	// informational and goes to stderr only.
	WarnNoLog
)

// Event is one persisted log record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Priority  Priority  `json:"priority"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Host      string    `json:"host,omitempty"`
	Source    string    `json:"source,omitempty"`
}

// EventLogConfig is the mutable logging configuration. It is undefined
// until defaults are applied and is mutated only through EventLogger
// setters driven by the setting registry.
type EventLogConfig struct {
	Destinations DestFlags
	Path         string
	Format       LogFormat

	// Severity used for accepted commands, and for rejections/alerts.
	AcceptPriority Priority
	RejectPriority Priority
	AlertPriority  Priority

	// Length caps. Zero means unlimited.
	SyslogMaxLen int
	FileMaxLen   int

	// TimeFormat is a time layout for line-format records.
	TimeFormat   string
	OmitHostname bool

	MailerPath  string
	MailerFlags string
	MailFrom    string
	MailTo      string
	MailSubject string

	BufferSize    int
	FlushInterval time.Duration

	// Stderr receives warnings. Defaults to os.Stderr.
	Stderr io.Writer
}

// DefaultEventLogConfig returns the front-end defaults the registry
// applies before policy text is considered.
func DefaultEventLogConfig() EventLogConfig {
	return EventLogConfig{
		Destinations:   DestSyslog,
		Format:         FormatSudo,
		AcceptPriority: PriorityNotice,
		RejectPriority: PriorityAlert,
		AlertPriority:  PriorityAlert,
		SyslogMaxLen:   960,
		TimeFormat:     "Jan _2 15:04:05",
		BufferSize:     64,
		FlushInterval:  5 * time.Second,
	}
}

// EventLogger is the logging collaborator mutated by setting callbacks
// and consulted when events are recorded.
type EventLogger struct {
	mu      sync.Mutex
	config  EventLogConfig
	backend eventBackend
	buffer  []Event

	flushTicker *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once

	host string
}

// NewEventLogger creates an event logger. Zero-value config fields fall
// back to DefaultEventLogConfig.
func NewEventLogger(config EventLogConfig) *EventLogger {
	def := DefaultEventLogConfig()
	if config.TimeFormat == "" {
		config.TimeFormat = def.TimeFormat
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}

	el := &EventLogger{
		config: config,
		buffer: make([]Event, 0, config.BufferSize),
		stopCh: make(chan struct{}),
		host:   DefaultHostName().Short(),
	}

	el.flushTicker = time.NewTicker(config.FlushInterval)
	go el.flushLoop()

	return el
}

// Config returns a copy of the current configuration.
func (el *EventLogger) Config() EventLogConfig {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.config
}

// SetDestinations replaces the destination flag set. Callers that toggle
// one destination are responsible for preserving the other bit.
func (el *EventLogger) SetDestinations(d DestFlags) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.Destinations = d
}

// SetLogPath sets the file destination path. The active backend is
// replaced lazily on the next persisted event.
func (el *EventLogger) SetLogPath(path string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if path == el.config.Path {
		return
	}
	el.config.Path = path
	el.closeBackendLocked()
}

// SetFormat selects the record format.
func (el *EventLogger) SetFormat(f LogFormat) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if f == el.config.Format {
		return
	}
	el.config.Format = f
	el.closeBackendLocked()
}

// SetAcceptPriority sets the severity used for accepted commands.
func (el *EventLogger) SetAcceptPriority(p Priority) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.AcceptPriority = p
}

// SetRejectPriority sets the severity used for rejected commands.
func (el *EventLogger) SetRejectPriority(p Priority) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.RejectPriority = p
}

// SetAlertPriority sets the severity used for alerts.
func (el *EventLogger) SetAlertPriority(p Priority) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.AlertPriority = p
}

// SetSyslogMaxLen caps the length of syslog-bound messages.
func (el *EventLogger) SetSyslogMaxLen(n int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.SyslogMaxLen = n
}

// SetFileMaxLen caps the line length of file-bound records.
func (el *EventLogger) SetFileMaxLen(n int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.FileMaxLen = n
}

// SetTimeFormat sets the time layout used by line-format records.
func (el *EventLogger) SetTimeFormat(layout string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.TimeFormat = layout
}

// SetOmitHostname controls whether records omit the local hostname.
func (el *EventLogger) SetOmitHostname(omit bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.OmitHostname = omit
}

// SetMailerPath sets the path of the mailer program.
func (el *EventLogger) SetMailerPath(path string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.MailerPath = path
}

// SetMailerFlags sets the flags passed to the mailer program.
func (el *EventLogger) SetMailerFlags(flags string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.MailerFlags = flags
}

// SetMailFrom sets the envelope sender of alert mail.
func (el *EventLogger) SetMailFrom(from string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.MailFrom = from
}

// SetMailTo sets the recipient of alert mail.
func (el *EventLogger) SetMailTo(to string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.MailTo = to
}

// SetMailSubject sets the subject of alert mail.
func (el *EventLogger) SetMailSubject(subject string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.config.MailSubject = subject
}

// Log records an event at the given priority. Events are persisted only
// when the file destination is enabled and a path is configured; syslog
// transport belongs to the embedding front end.
func (el *EventLogger) Log(pri Priority, code, format string, args ...interface{}) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.logLocked(pri, code, "", fmt.Sprintf(format, args...))
}

// Warn emits a warning to stderr and, when flagged audit-worthy,
// persists it through the active backend.
func (el *EventLogger) Warn(flags WarnFlags, code, format string, args ...interface{}) {
	el.mu.Lock()
	defer el.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if flags&WarnRawMsg != 0 {
		fmt.Fprintf(el.config.Stderr, "aegis: %s\n", msg)
	} else {
		fmt.Fprintf(el.config.Stderr, "aegis: [%s] %s\n", code, msg)
	}

	if flags&WarnAudit != 0 && flags&WarnNoLog == 0 {
		el.logLocked(el.config.AlertPriority, code, "", msg)
	}
}

// logLocked buffers one event; caller must hold mu.
func (el *EventLogger) logLocked(pri Priority, code, source, msg string) {
	if el.config.Destinations&DestFile == 0 || el.config.Path == "" {
		return
	}
	if el.config.FileMaxLen > 0 && len(msg) > el.config.FileMaxLen {
		msg = msg[:el.config.FileMaxLen]
	}

	ev := Event{
		Timestamp: timecache.CachedTime(),
		Priority:  pri,
		Code:      code,
		Message:   msg,
		Source:    source,
	}
	if !el.config.OmitHostname {
		ev.Host = el.host
	}

	el.buffer = append(el.buffer, ev)
	if len(el.buffer) >= el.config.BufferSize {
		_ = el.flushLocked()
	}
}

// Flush writes all buffered events to the backend.
func (el *EventLogger) Flush() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.flushLocked()
}

func (el *EventLogger) flushLocked() error {
	if len(el.buffer) == 0 {
		return nil
	}
	if el.backend == nil {
		backend, err := newEventBackend(el.config.Path, el.config.Format, el.renderLine)
		if err != nil {
			return err
		}
		el.backend = backend
	}
	if err := el.backend.Write(el.buffer); err != nil {
		return err
	}
	el.buffer = el.buffer[:0]
	return nil
}

// Close flushes pending events and releases the backend.
func (el *EventLogger) Close() error {
	el.stopOnce.Do(func() {
		close(el.stopCh)
		el.flushTicker.Stop()
	})

	el.mu.Lock()
	defer el.mu.Unlock()
	err := el.flushLocked()
	el.closeBackendLocked()
	return err
}

func (el *EventLogger) closeBackendLocked() {
	if el.backend != nil {
		_ = el.flushLocked()
		_ = el.backend.Close()
		el.backend = nil
	}
}

func (el *EventLogger) flushLoop() {
	for {
		select {
		case <-el.flushTicker.C:
			_ = el.Flush()
		case <-el.stopCh:
			return
		}
	}
}

// renderLine formats one event in the traditional line format:
//
//	Jan  2 15:04:05 host : alert : CODE : message
func (el *EventLogger) renderLine(ev Event) string {
	ts := ev.Timestamp.Format(el.config.TimeFormat)
	parts := ts
	if ev.Host != "" {
		parts += " " + ev.Host
	}
	parts += " : " + ev.Priority.String()
	if ev.Code != "" {
		parts += " : " + ev.Code
	}
	return parts + " : " + ev.Message
}
