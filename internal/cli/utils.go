// Rendering helpers shared by the Aegis CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"io"

	"github.com/agilira/aegis"
)

// WriteEffectiveState renders the evaluation context's runtime state
// after policy application in a stable, line-oriented form.
func WriteEffectiveState(w io.Writer, ctx *aegis.EvalContext) {
	inv := ctx.Invoker()
	tgt := ctx.Target()
	elog := ctx.EventLog().Config()
	iolog := ctx.IOLog()
	icept := ctx.Intercept()
	ts := ctx.Timestamp()

	fmt.Fprintf(w, "invoker: %s (uid=%d gid=%d) host=%s shost=%s\n",
		inv.Name, inv.UID, inv.GID, inv.Host.Long(), inv.Host.Short())
	fmt.Fprintf(w, "target:  %s (uid=%d gid=%d) host=%s shost=%s\n",
		tgt.Name, tgt.UID, tgt.GID, tgt.Host.Long(), tgt.Host.Short())

	fmt.Fprintf(w, "log destinations: %s\n", destString(elog.Destinations))
	fmt.Fprintf(w, "log path: %s\n", orNone(elog.Path))
	fmt.Fprintf(w, "log format: %s\n", formatString(elog.Format))
	fmt.Fprintf(w, "accept/reject/alert priority: %s/%s/%s\n",
		elog.AcceptPriority, elog.RejectPriority, elog.AlertPriority)

	fmt.Fprintf(w, "timestamp scope: %s owner: uid=%d gid=%d\n",
		scopeString(ts.Scope), ts.OwnerUID, ts.OwnerGID)
	fmt.Fprintf(w, "umask: %#o (override=%t)\n", uint32(ctx.Umask()), ctx.OverrideUmask())
	fmt.Fprintf(w, "runchroot: %s\n", orNone(ctx.Chroot()))

	fmt.Fprintf(w, "intercept: type=%s allow_setid=%t\n",
		interceptString(icept.Type), icept.AllowSetID)
	fmt.Fprintf(w, "iolog: stdin=%t ttyin=%t stdout=%t stderr=%t ttyout=%t\n",
		iolog.LogStdin, iolog.LogTTYIn, iolog.LogStdout, iolog.LogStderr, iolog.LogTTYOut)
	fmt.Fprintf(w, "iolog template: %s (root %s)\n", iolog.Template, iolog.Dir)
}

func destString(d aegis.DestFlags) string {
	switch {
	case d&aegis.DestSyslog != 0 && d&aegis.DestFile != 0:
		return "syslog,file"
	case d&aegis.DestSyslog != 0:
		return "syslog"
	case d&aegis.DestFile != 0:
		return "file"
	default:
		return "none"
	}
}

func formatString(f aegis.LogFormat) string {
	if f == aegis.FormatJSON {
		return "json"
	}
	return "sudo"
}

func scopeString(s aegis.TimestampScope) string {
	if s == aegis.ScopeTTY {
		return "tty"
	}
	return "global"
}

func interceptString(t aegis.InterceptType) string {
	if t == aegis.InterceptDSO {
		return "dso"
	}
	return "trace"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
