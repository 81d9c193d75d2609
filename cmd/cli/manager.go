// Package cli provides the command-line interface for Aegis policy
// inspection.
//
// This package implements the CLI using the Orpheus framework:
// git-style subcommands for applying policy-settings files, listing the
// setting registry and previewing I/O-log path expansion.
//
// Architecture:
// - Manager: CLI orchestration and command routing
// - Handlers: individual command implementations
// - internal/cli: shared rendering helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"github.com/agilira/orpheus/pkg/orpheus"
)

// Manager provides CLI operations for Aegis policy inspection.
type Manager struct {
	app *orpheus.App
}

// NewManager creates a CLI manager powered by Orpheus.
func NewManager() *Manager {
	app := orpheus.New("aegis").
		SetDescription("Policy-settings inspection for the Aegis evaluator").
		SetVersion("1.0.0")

	manager := &Manager{app: app}

	manager.setupSettingsCommands()
	manager.setupApplyCommand()
	manager.setupIOLogCommands()

	return manager
}

// Run executes the CLI application with the provided arguments.
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// setupSettingsCommands configures the 'settings' command group.
func (m *Manager) setupSettingsCommands() {
	settingsCmd := orpheus.NewCommand("settings", "Setting registry operations")

	// settings list
	settingsCmd.Subcommand("list", "List recognized settings in registry order", m.handleSettingsList)

	m.app.AddCommand(settingsCmd)
}

// setupApplyCommand configures the 'apply' command.
func (m *Manager) setupApplyCommand() {
	applyCmd := orpheus.NewCommand("apply", "Apply a policy-settings file and show the effective state")
	applyCmd.SetHandler(m.handleApply)
	applyCmd.AddFlag("iolog-dir", "d", "/var/log/aegis-io", "I/O-log root directory")
	applyCmd.AddFlag("iolog-template", "t", "%{seq}", "I/O-log path template")
	applyCmd.AddFlag("logfile", "l", "", "Event log path (line, .jsonl or .db)")

	m.app.AddCommand(applyCmd)
}

// setupIOLogCommands configures the 'iolog' command group.
func (m *Manager) setupIOLogCommands() {
	iologCmd := orpheus.NewCommand("iolog", "I/O-log path operations")

	// iolog path [--policy=file] [--template=] [--dir=]
	pathCmd := iologCmd.Subcommand("path", "Expand the I/O-log path template", m.handleIOLogPath)
	pathCmd.AddFlag("policy", "p", "", "Policy-settings file to apply first")
	pathCmd.AddFlag("template", "t", "", "Template override")
	pathCmd.AddFlag("dir", "d", "/var/log/aegis-io", "I/O-log root directory")

	m.app.AddCommand(iologCmd)
}
