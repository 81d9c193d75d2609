// aegis: Reactive settings layer for a privileged command-execution policy evaluator
//
// Philosophy:
// - Lean dependencies (AGILira ecosystem, plus YAML and SQLite for persistence)
// - Explicit evaluation context instead of process-wide singletons
// - Fixed, auditable setting-to-effect association
// - Narrow collaborator interfaces for host/user/group resolution
//
// Example Usage:
//
//	ctx := aegis.NewEvalContext(aegis.Options{
//	    Invoker: aegis.ActorIdentity{Name: "alice", UID: 1000, GID: 1000},
//	    Target:  aegis.ActorIdentity{Name: "root", UID: 0, GID: 0},
//	})
//	defer ctx.Close()
//
//	err := ctx.Apply(aegis.SettingLogInput, aegis.FlagValue(true),
//	    aegis.OpSet, aegis.Source{File: "policy", Line: 1, Column: 1})
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Error codes for Aegis operations
const (
	ErrCodeUnknownSetting    = "AEGIS_UNKNOWN_SETTING"
	ErrCodeBadValue          = "AEGIS_BAD_VALUE"
	ErrCodeUnknownUser       = "AEGIS_UNKNOWN_USER"
	ErrCodeResolveFailed     = "AEGIS_RESOLVE_FAILED"
	ErrCodeSequenceExhausted = "AEGIS_SEQUENCE_EXHAUSTED"
	ErrCodeTemplateError     = "AEGIS_TEMPLATE_ERROR"
	ErrCodePathTooLong       = "AEGIS_PATH_TOO_LONG"
	ErrCodeInvalidConfig     = "AEGIS_INVALID_CONFIG"
	ErrCodeIOError           = "AEGIS_IO_ERROR"
	ErrCodePolicyError       = "AEGIS_POLICY_ERROR"
)

// AccessPerms is the sentinel permission value meaning "no explicit umask".
// A umask setting equal to this value leaves the front end's umask in force.
const AccessPerms fs.FileMode = 0777

// ActorIdentity bundles the resolved name/uid/gid/hostname of one actor.
// Two instances exist per evaluation: the invoking user and the target
// (run-as) user.
type ActorIdentity struct {
	Name string
	UID  int
	GID  int

	// GroupName is the primary group name when the front end already
	// resolved it. Empty means it must be looked up by GID on demand.
	GroupName string

	Host HostName
}

// CommandStatus describes the resolution state of the invoker's command
// against the active chroot.
type CommandStatus int

const (
	// CommandUnresolved means no resolution has been attempted yet.
	CommandUnresolved CommandStatus = iota
	// CommandFound means the command resolved to an executable path.
	CommandFound
	// CommandNotFound means resolution was attempted and failed.
	// This is a representable outcome, not an error.
	CommandNotFound
)

// CommandInfo is the invoker's command as known to the evaluator.
type CommandInfo struct {
	Path   string // resolved path, empty if no command yet
	Base   string // base name used for path templating
	Status CommandStatus
}

// PathResolver re-derives a command's resolution status against a chroot.
// The default implementation stats the joined path; embedders running under
// a real root pivot supply their own.
type PathResolver func(command, chroot string) (string, CommandStatus)

// defaultPathResolver checks for the command under the given chroot.
func defaultPathResolver(command, chroot string) (string, CommandStatus) {
	path := command
	if chroot != "" && chroot != "/" {
		path = filepath.Join(chroot, command)
	}
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return command, CommandFound
	}
	return command, CommandNotFound
}

// InterceptType is the mechanism by which privileged execution observes
// and controls sub-process execution.
type InterceptType int

const (
	// InterceptTrace uses process tracing.
	InterceptTrace InterceptType = iota
	// InterceptDSO uses shared-object injection. Switching to this
	// mechanism resets AllowSetID unless the operator forced it.
	InterceptDSO
)

// InterceptPolicy is the active command-interception configuration.
type InterceptPolicy struct {
	Type       InterceptType
	AllowSetID bool
}

// TimestampScope is the granularity of authentication timestamp records.
type TimestampScope int

const (
	// ScopeGlobal records one timestamp per user.
	ScopeGlobal TimestampScope = iota
	// ScopeTTY records one timestamp per user and terminal.
	ScopeTTY
)

// TimestampOptions holds timestamp-file configuration derived from settings.
type TimestampOptions struct {
	Scope TimestampScope

	// Owner of the timestamp directory and files.
	OwnerUID int
	OwnerGID int
}

// IOLogOptions configures I/O-log capture and path generation.
type IOLogOptions struct {
	// Dir is the log root under which session directories are created.
	Dir string

	// Template is the per-session path template expanded with %{name}
	// escapes, e.g. "%{hostname}/%{user}/%{seq}".
	Template string

	// MaxPathLen caps the expanded path length.
	MaxPathLen int

	// Capture flags. LogStdin/LogTTYIn are toggled as one unit by the
	// log_input setting, LogStdout/LogStderr/LogTTYOut by log_output.
	// They are never set independently.
	LogStdin  bool
	LogTTYIn  bool
	LogStdout bool
	LogStderr bool
	LogTTYOut bool
}

// Options configures a new EvalContext. Zero-value collaborators are
// replaced by working defaults in NewEvalContext.
type Options struct {
	Invoker ActorIdentity
	Target  ActorIdentity
	Command CommandInfo
	Chroot  string

	IOLog IOLogOptions

	// Resolver performs canonical hostname lookups for the fqdn setting.
	Resolver HostResolver

	// Passwd and Groups are the identity lookup collaborators.
	Passwd PasswdSource
	Groups GroupSource

	// Sequence allocates per-session identifiers for I/O-log paths.
	Sequence SequenceSource

	// PathResolver re-derives command resolution after chroot changes.
	PathResolver PathResolver

	// EventLog configures the logging collaborator. Ignored when
	// EventLogger is supplied directly.
	EventLog    EventLogConfig
	EventLogger *EventLogger
}

// WithDefaults applies sensible defaults to the options.
func (o *Options) WithDefaults() *Options {
	opts := *o

	if opts.Invoker.Host.IsZero() {
		opts.Invoker.Host = DefaultHostName()
	}
	if opts.Target.Host.IsZero() {
		opts.Target.Host = opts.Invoker.Host
	}
	if opts.Command.Path != "" && opts.Command.Base == "" {
		opts.Command.Base = filepath.Base(opts.Command.Path)
	}
	if opts.IOLog.Dir == "" {
		opts.IOLog.Dir = "/var/log/aegis-io"
	}
	if opts.IOLog.Template == "" {
		opts.IOLog.Template = "%{seq}"
	}
	if opts.IOLog.MaxPathLen <= 0 {
		opts.IOLog.MaxPathLen = 4096
	}
	if opts.Resolver == nil {
		opts.Resolver = NewCanonicalResolver(0)
	}
	if opts.Passwd == nil || opts.Groups == nil {
		src := NewOSIdentitySource()
		if opts.Passwd == nil {
			opts.Passwd = src
		}
		if opts.Groups == nil {
			opts.Groups = src
		}
	}
	if opts.Sequence == nil {
		opts.Sequence = NewFileSequenceSource()
	}
	if opts.PathResolver == nil {
		opts.PathResolver = defaultPathResolver
	}

	return &opts
}

// EvalContext is the evaluation context threaded through setting
// application. It owns the runtime state that setting callbacks mutate and
// replaces the global evaluator state a traditional implementation keeps.
//
// An EvalContext is not safe for concurrent use: registry application is
// strictly sequential and callbacks perform read-then-write on compound
// state. Callers exposing one context to multiple goroutines must
// serialize access themselves (single-writer discipline).
type EvalContext struct {
	invoker ActorIdentity
	target  ActorIdentity
	command CommandInfo
	chroot  string

	intercept InterceptPolicy
	// interceptSetIDForced is set when the operator explicitly assigned
	// intercept_allow_setid, suppressing the implicit reset on mechanism
	// changes.
	interceptSetIDForced bool

	timestamp TimestampOptions

	umask fs.FileMode
	// overrideUmask records whether policy text explicitly overrode the
	// default permission mode.
	overrideUmask bool

	iolog IOLogOptions
	// sessionID caches the six-character sequence identifier once
	// allocated; repeated template expansions reuse it.
	sessionID string

	resolver     HostResolver
	passwd       PasswdSource
	groups       GroupSource
	sequence     SequenceSource
	pathResolver PathResolver

	elog      *EventLogger
	ownedElog bool

	// vals stores the most recently applied value per setting so that
	// callbacks can consult sibling settings (e.g. the syslog/logfile
	// destination pair).
	vals map[SettingID]Value
}

// NewEvalContext creates an evaluation context with the given options.
func NewEvalContext(opts Options) *EvalContext {
	o := opts.WithDefaults()

	ctx := &EvalContext{
		invoker:      o.Invoker,
		target:       o.Target,
		command:      o.Command,
		chroot:       o.Chroot,
		umask:        AccessPerms,
		iolog:        o.IOLog,
		resolver:     o.Resolver,
		passwd:       o.Passwd,
		groups:       o.Groups,
		sequence:     o.Sequence,
		pathResolver: o.PathResolver,
		vals:         make(map[SettingID]Value),
	}

	if o.EventLogger != nil {
		ctx.elog = o.EventLogger
	} else {
		ctx.elog = NewEventLogger(o.EventLog)
		ctx.ownedElog = true
	}

	return ctx
}

// Close releases resources owned by the context. An event logger supplied
// by the caller is left open.
func (ctx *EvalContext) Close() error {
	if ctx.ownedElog && ctx.elog != nil {
		return ctx.elog.Close()
	}
	return nil
}

// Invoker returns the invoking user's identity.
func (ctx *EvalContext) Invoker() ActorIdentity { return ctx.invoker }

// Target returns the target (run-as) user's identity.
func (ctx *EvalContext) Target() ActorIdentity { return ctx.target }

// Command returns the invoker's command info.
func (ctx *EvalContext) Command() CommandInfo { return ctx.command }

// Chroot returns the active run-chroot directory.
func (ctx *EvalContext) Chroot() string { return ctx.chroot }

// Intercept returns the active command-interception policy.
func (ctx *EvalContext) Intercept() InterceptPolicy { return ctx.intercept }

// Timestamp returns the timestamp-file configuration.
func (ctx *EvalContext) Timestamp() TimestampOptions { return ctx.timestamp }

// Umask returns the permission mode from the umask setting.
func (ctx *EvalContext) Umask() fs.FileMode { return ctx.umask }

// OverrideUmask reports whether policy text explicitly overrode the
// default permission mode.
func (ctx *EvalContext) OverrideUmask() bool { return ctx.overrideUmask }

// IOLog returns the I/O-log capture configuration.
func (ctx *EvalContext) IOLog() IOLogOptions { return ctx.iolog }

// EventLog returns the logging collaborator mutated by setting callbacks.
func (ctx *EvalContext) EventLog() *EventLogger { return ctx.elog }

// flagVal returns the applied flag value of a setting, or false.
func (ctx *EvalContext) flagVal(id SettingID) bool {
	if v, ok := ctx.vals[id]; ok && v.Kind() == KindFlag {
		return v.Flag()
	}
	return false
}

// stringVal returns the applied string value of a setting, or "".
func (ctx *EvalContext) stringVal(id SettingID) string {
	if v, ok := ctx.vals[id]; ok && v.Kind() == KindString {
		return v.Str()
	}
	return ""
}
