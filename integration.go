// integration.go: Unified runtime layer for Aegis + FlashFlags
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// This file wires the evaluator's runtime options to FlashFlags so that
// embedding front ends get command-line and environment overrides for
// free: policy file path, log root, path template and event-log options
// all resolve through one precedence chain (flags > env > defaults).

package aegis

import (
	"fmt"
	"os"

	flashflags "github.com/agilira/flash-flags"
)

// RuntimeManager binds evaluator runtime options to command-line flags
// and environment variables, then builds evaluation contexts from the
// resolved values.
type RuntimeManager struct {
	flags *flashflags.FlagSet

	appName string
	opts    Options
}

// NewRuntimeManager creates a runtime manager with the evaluator's
// standard flag set registered.
func NewRuntimeManager(appName string) *RuntimeManager {
	rm := &RuntimeManager{
		flags:   flashflags.New(appName),
		appName: appName,
	}

	rm.flags.String("policy", "", "Policy settings file applied at startup")
	rm.flags.String("iolog-dir", "/var/log/aegis-io", "I/O-log root directory")
	rm.flags.String("iolog-template", "%{seq}", "I/O-log path template")
	rm.flags.Int("iolog-max-path", 4096, "Maximum expanded I/O-log path length")
	rm.flags.String("logfile", "", "Event log path (line, .jsonl or .db)")
	rm.flags.Bool("log-json", false, "Use JSON event records")

	return rm
}

// SetDescription sets the help text description.
func (rm *RuntimeManager) SetDescription(description string) *RuntimeManager {
	rm.flags.SetDescription(description)
	return rm
}

// SetVersion sets the application version for help text.
func (rm *RuntimeManager) SetVersion(version string) *RuntimeManager {
	rm.flags.SetVersion(version)
	return rm
}

// WithOptions seeds the evaluation options the manager starts from;
// parsed flags override the corresponding fields.
func (rm *RuntimeManager) WithOptions(opts Options) *RuntimeManager {
	rm.opts = opts
	return rm
}

// Parse parses command-line arguments and environment variables.
func (rm *RuntimeManager) Parse(args []string) error {
	rm.flags.SetEnvPrefix(envPrefix(rm.appName))
	if err := rm.flags.Parse(args); err != nil {
		return fmt.Errorf("failed to parse command-line flags: %w", err)
	}
	return nil
}

// ParseArgs is a convenience method that parses os.Args[1:].
func (rm *RuntimeManager) ParseArgs() error {
	return rm.Parse(os.Args[1:])
}

// PolicyPath returns the resolved policy file path, empty when none was
// given.
func (rm *RuntimeManager) PolicyPath() string {
	return rm.flags.GetString("policy")
}

// NewContext builds an evaluation context from the seeded options with
// flag overrides applied, and loads the policy file when one was given.
func (rm *RuntimeManager) NewContext() (*EvalContext, error) {
	opts := rm.opts
	opts.IOLog.Dir = rm.flags.GetString("iolog-dir")
	opts.IOLog.Template = rm.flags.GetString("iolog-template")
	opts.IOLog.MaxPathLen = rm.flags.GetInt("iolog-max-path")

	if path := rm.flags.GetString("logfile"); path != "" {
		opts.EventLog.Path = path
		opts.EventLog.Destinations |= DestFile
	}
	if rm.flags.GetBool("log-json") {
		opts.EventLog.Format = FormatJSON
	}

	ctx := NewEvalContext(opts)
	if policy := rm.PolicyPath(); policy != "" {
		if err := ctx.ApplyFile(policy); err != nil {
			_ = ctx.Close()
			return nil, err
		}
	} else if err := ctx.ApplyDefaults(); err != nil {
		_ = ctx.Close()
		return nil, err
	}
	return ctx, nil
}

// PrintUsage prints help information for all flags.
func (rm *RuntimeManager) PrintUsage() {
	rm.flags.PrintHelp()
}

// envPrefix converts an app name to its environment variable prefix.
func envPrefix(appName string) string {
	out := make([]byte, 0, len(appName))
	for i := 0; i < len(appName); i++ {
		c := appName[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == '-':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
