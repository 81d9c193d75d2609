// Command handlers for the Aegis CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/agilira/aegis"
	icli "github.com/agilira/aegis/internal/cli"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleSettingsList prints every recognized setting in registry order.
func (m *Manager) handleSettingsList(ctx *orpheus.Context) error {
	for _, id := range aegis.Settings() {
		fmt.Printf("%-24s %s\n", aegis.SettingName(id), aegis.SettingKind(id))
	}
	return nil
}

// handleApply applies a policy file and prints the effective state.
func (m *Manager) handleApply(ctx *orpheus.Context) error {
	policyPath := ctx.GetArg(0)
	if policyPath == "" {
		return errors.New(aegis.ErrCodePolicyError, "usage: aegis apply <policy-file>")
	}

	evalCtx := aegis.NewEvalContext(buildOptions(ctx))
	defer func() { _ = evalCtx.Close() }()

	if err := evalCtx.ApplyFile(policyPath); err != nil {
		return errors.Wrap(err, aegis.ErrCodePolicyError, "policy load aborted")
	}

	icli.WriteEffectiveState(os.Stdout, evalCtx)
	return nil
}

// handleIOLogPath expands the I/O-log path template, optionally after
// applying a policy file.
func (m *Manager) handleIOLogPath(ctx *orpheus.Context) error {
	evalCtx := aegis.NewEvalContext(buildIOLogOptions(ctx))
	defer func() { _ = evalCtx.Close() }()

	if policy := ctx.GetFlagString("policy"); policy != "" {
		if err := evalCtx.ApplyFile(policy); err != nil {
			return errors.Wrap(err, aegis.ErrCodePolicyError, "policy load aborted")
		}
	} else if err := evalCtx.ApplyDefaults(); err != nil {
		return err
	}

	path, err := evalCtx.IOLogPath()
	if err != nil {
		return errors.Wrap(err, aegis.ErrCodeTemplateError, "path expansion failed")
	}
	fmt.Println(path)
	return nil
}
