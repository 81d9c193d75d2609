// Package aegis implements the reactive settings layer of a privileged
// command-execution policy evaluator.
//
// When policy text is parsed, each recognized setting name is bound to a
// callback that translates the parsed value into mutations of the
// evaluator's runtime state: logging destination and format, host
// identity, timestamp-file ownership, umask override, I/O-log path
// templating and command-interception mode.
//
// # Architecture Overview
//
// Aegis consists of five integrated subsystems:
//  1. **Setting-Effect Registry**: fixed-order table mapping setting
//     identity to its effect callback, with operation codes separating
//     operator assignments from front-end defaults
//  2. **Host Identity Resolver**: canonical/short hostname resolution
//     for the invoking and target actors, with graceful fallback
//  3. **Sequence Allocator + Path Template Expander**: deterministic,
//     collision-bounded I/O-log path generation
//  4. **Event Logger**: the logging collaborator mutated by setting
//     callbacks, with line, JSONL and SQLite persistence backends
//  5. **Runtime Integration**: FlashFlags-backed option binding and a
//     polling policy-reload watcher
//
// # Quick Start
//
//	ctx := aegis.NewEvalContext(aegis.Options{
//	    Invoker: aegis.ActorIdentity{Name: "alice", UID: 1000, GID: 1000},
//	    Target:  aegis.ActorIdentity{Name: "root"},
//	})
//	defer ctx.Close()
//
//	if err := ctx.ApplyFile("/etc/aegis/policy.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	path, err := ctx.IOLogPath()
//
// The evaluation context is single-writer: registry application walks
// the setting table sequentially, and callbacks perform non-atomic
// read-then-write on compound state. Callers needing concurrent access
// must serialize it themselves; the ReloadWatcher demonstrates the
// intended pattern by rebuilding a fresh context per policy change.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package aegis
