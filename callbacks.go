// callbacks.go: Setting-effect callbacks for Aegis
//
// Each callback translates one parsed setting value into mutations of the
// evaluation context or its logging collaborator. Callbacks are idempotent
// for repeated identical values but ordering-sensitive across distinct
// settings; the registry applies them in its fixed table order.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
)

// cbFQDN resolves both actors' hosts to fully qualified form.
//
// The invoker's host is resolved first; if that fails, the target's host
// is tried as a fallback and, on success, reused for the invoker too
// (warned at raw-message severity, not audit-worthy). The target's host
// is resolved a second time only when its original string differs from
// the invoker's; identical strings clone the already-resolved pair so
// exactly one lookup hits the network. No identity is replaced until both
// new long and short forms are fully constructed.
func cbFQDN(ctx *EvalContext, val Value, op Op, src Source) error {
	// Nothing to do when the fqdn flag is disabled.
	if !val.Flag() {
		return nil
	}

	remote := ctx.target.Host.Long() != ctx.invoker.Host.Long()

	invokerHost, err := resolveHost(context.Background(), ctx.resolver, ctx.invoker.Host.Long())
	if err != nil {
		// Fall back to the target's host for the invoker's identity.
		invokerHost, err = resolveHost(context.Background(), ctx.resolver, ctx.target.Host.Long())
		if err != nil {
			ctx.elog.Warn(WarnParseError|WarnRawMsg, ErrCodeResolveFailed,
				"unable to resolve host %s: %v", ctx.invoker.Host.Long(), err)
			return errors.Wrap(err, ErrCodeResolveFailed, "fqdn resolution failed").
				WithContext("host", ctx.invoker.Host.Long()).
				WithContext("source", src.String())
		}
	}

	var targetHost HostName
	if remote {
		targetHost, err = resolveHost(context.Background(), ctx.resolver, ctx.target.Host.Long())
		if err != nil {
			ctx.elog.Warn(WarnNoLog|WarnRawMsg, ErrCodeResolveFailed,
				"unable to resolve host %s: %v", ctx.target.Host.Long(), err)
			return errors.Wrap(err, ErrCodeResolveFailed, "fqdn resolution failed").
				WithContext("host", ctx.target.Host.Long()).
				WithContext("source", src.String())
		}
	} else {
		// Not remote: clone the invoker's resolved pair, preserving
		// the alias relation between long and short forms.
		targetHost = invokerHost
	}

	// Both pairs fully constructed; install together.
	ctx.invoker.Host = invokerHost
	ctx.target.Host = targetHost
	return nil
}

// cbTimestampOwner resolves the timestamp-file owner from a user name or
// "#uid" reference. Lookup failure emits a setting-scoped audit warning
// and fails without mutating state.
func cbTimestampOwner(ctx *EvalContext, val Value, op Op, src Source) error {
	name := val.Str()

	var pw Passwd
	found := false
	if strings.HasPrefix(name, "#") {
		if uid, err := ParseID(name[1:]); err == nil {
			pw, found = ctx.passwd.LookupUserID(uid)
		}
	}
	if !found {
		pw, found = ctx.passwd.LookupUser(name)
	}
	if !found {
		ctx.elog.Warn(WarnAudit|WarnParseError, ErrCodeUnknownUser,
			"%s timestampowner: unknown user %s", src, name)
		return errors.New(ErrCodeUnknownUser, "timestampowner: unknown user "+name).
			WithContext("source", src.String())
	}

	ctx.timestamp.OwnerUID = pw.UID
	ctx.timestamp.OwnerGID = pw.GID
	return nil
}

// cbTTYTickets maps the boolean tty_tickets flag to a timestamp scope.
func cbTTYTickets(ctx *EvalContext, val Value, op Op, src Source) error {
	if val.Flag() {
		ctx.timestamp.Scope = ScopeTTY
	} else {
		ctx.timestamp.Scope = ScopeGlobal
	}
	return nil
}

// cbUmask records the permission mode and whether the operator explicitly
// overrode the default. The AccessPerms sentinel means "not set".
func cbUmask(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.umask = val.Mode()
	ctx.overrideUmask = val.Mode() != AccessPerms
	return nil
}

// cbRunChroot installs a new run-chroot and, when a command was already
// resolved under the prior chroot, re-derives its resolution status.
// An unresolved outcome is representable and does not fail the callback.
func cbRunChroot(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.chroot = val.Str()
	if ctx.command.Path != "" {
		path, status := ctx.pathResolver(ctx.command.Path, ctx.chroot)
		ctx.command.Path = path
		ctx.command.Base = filepath.Base(path)
		ctx.command.Status = status
	}
	return nil
}

// cbLogFile sets the file log path. The syslog destination bit is carried
// over from the syslog setting so neither setting clobbers the other.
func cbLogFile(ctx *EvalContext, val Value, op Op, src Source) error {
	dest := DestNone
	if ctx.flagVal(SettingSyslog) {
		dest |= DestSyslog
	}
	if val.Str() != "" {
		dest |= DestFile
	}
	ctx.elog.SetDestinations(dest)
	ctx.elog.SetLogPath(val.Str())
	return nil
}

// cbLogFormat selects the event record format.
func cbLogFormat(ctx *EvalContext, val Value, op Op, src Source) error {
	if val.Tuple() == TupleSudo {
		ctx.elog.SetFormat(FormatSudo)
	} else {
		ctx.elog.SetFormat(FormatJSON)
	}
	return nil
}

// cbSyslog toggles the syslog destination, preserving the file bit.
func cbSyslog(ctx *EvalContext, val Value, op Op, src Source) error {
	dest := DestNone
	if ctx.stringVal(SettingLogFile) != "" {
		dest |= DestFile
	}
	if val.Flag() {
		dest |= DestSyslog
	}
	ctx.elog.SetDestinations(dest)
	return nil
}

func cbSyslogGoodPri(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetAcceptPriority(Priority(val.Int()))
	return nil
}

// cbSyslogBadPri drives both the reject and alert severities.
func cbSyslogBadPri(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetRejectPriority(Priority(val.Int()))
	ctx.elog.SetAlertPriority(Priority(val.Int()))
	return nil
}

func cbSyslogMaxLen(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetSyslogMaxLen(val.Int())
	return nil
}

func cbLogLineLen(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetFileMaxLen(val.Int())
	return nil
}

// cbLogYear widens the record timestamp format to include the year.
func cbLogYear(ctx *EvalContext, val Value, op Op, src Source) error {
	if val.Flag() {
		ctx.elog.SetTimeFormat("Jan _2 15:04:05 2006")
	} else {
		ctx.elog.SetTimeFormat("Jan _2 15:04:05")
	}
	return nil
}

// cbLogHost maps the log_host flag to the hostname-omission bit.
func cbLogHost(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetOmitHostname(!val.Flag())
	return nil
}

func cbMailerPath(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetMailerPath(val.Str())
	return nil
}

func cbMailerFlags(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetMailerFlags(val.Str())
	return nil
}

func cbMailFrom(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetMailFrom(val.Str())
	return nil
}

func cbMailTo(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetMailTo(val.Str())
	return nil
}

func cbMailSub(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.elog.SetMailSubject(val.Str())
	return nil
}

// cbInterceptType selects the interception mechanism. Switching to the
// shared-object mechanism resets the allow-setid default, but only when
// the operator has not explicitly forced it; the explicit-override flag
// must be checked before applying this implicit default.
func cbInterceptType(ctx *EvalContext, val Value, op Op, src Source) error {
	if op.Explicit() {
		if val.Tuple() == TupleDSO && !ctx.interceptSetIDForced {
			ctx.intercept.AllowSetID = false
		}
	}
	if val.Tuple() == TupleDSO {
		ctx.intercept.Type = InterceptDSO
	} else {
		ctx.intercept.Type = InterceptTrace
	}
	return nil
}

// cbInterceptAllowSetID records an explicit operator override so that
// mechanism switches stop resetting the flag.
func cbInterceptAllowSetID(ctx *EvalContext, val Value, op Op, src Source) error {
	if op.Explicit() {
		ctx.interceptSetIDForced = true
	}
	ctx.intercept.AllowSetID = val.Flag()
	return nil
}

// cbLogInput toggles stdin capture and terminal-input capture as one
// unit. The low-level flags are never set independently.
func cbLogInput(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.iolog.LogStdin = val.Flag()
	ctx.iolog.LogTTYIn = val.Flag()
	return nil
}

// cbLogOutput toggles stdout, stderr and terminal-output capture as one
// unit.
func cbLogOutput(ctx *EvalContext, val Value, op Op, src Source) error {
	ctx.iolog.LogStdout = val.Flag()
	ctx.iolog.LogStderr = val.Flag()
	ctx.iolog.LogTTYOut = val.Flag()
	return nil
}
