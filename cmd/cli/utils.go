// Utility functions for the Aegis CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"os/user"
	"strconv"

	"github.com/agilira/aegis"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// buildOptions assembles evaluation options for the apply command: the
// current process user as invoker, root as target, flag overrides for
// the I/O-log and event-log surfaces.
func buildOptions(ctx *orpheus.Context) aegis.Options {
	opts := aegis.Options{
		Invoker: currentActor(),
		Target:  aegis.ActorIdentity{Name: "root"},
	}
	opts.IOLog.Dir = ctx.GetFlagString("iolog-dir")
	opts.IOLog.Template = ctx.GetFlagString("iolog-template")
	if path := ctx.GetFlagString("logfile"); path != "" {
		opts.EventLog.Path = path
		opts.EventLog.Destinations |= aegis.DestFile
	}
	return opts
}

// buildIOLogOptions assembles evaluation options for iolog commands.
func buildIOLogOptions(ctx *orpheus.Context) aegis.Options {
	opts := aegis.Options{
		Invoker: currentActor(),
		Target:  aegis.ActorIdentity{Name: "root"},
	}
	if dir := ctx.GetFlagString("dir"); dir != "" {
		opts.IOLog.Dir = dir
	}
	if tmpl := ctx.GetFlagString("template"); tmpl != "" {
		opts.IOLog.Template = tmpl
	}
	return opts
}

// currentActor resolves the invoking process user, falling back to a
// nameless identity when the user database is unavailable.
func currentActor() aegis.ActorIdentity {
	u, err := user.Current()
	if err != nil {
		return aegis.ActorIdentity{Name: "unknown"}
	}
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)
	return aegis.ActorIdentity{Name: u.Username, UID: uid, GID: gid}
}
