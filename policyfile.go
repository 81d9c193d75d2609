// policyfile.go: Policy-settings file loading for Aegis
//
// The policy grammar proper lives in the front end; this file consumes an
// already-structured settings document (YAML mapping of setting name to
// value), coerces each value to the setting's declared kind and applies
// the result through the registry in its fixed order.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// ParsedSetting is one setting parsed from a policy file, carrying its
// source location for diagnostics.
type ParsedSetting struct {
	ID     SettingID
	Value  Value
	Source Source
}

// ParsePolicyFile reads a YAML settings document and returns the parsed
// settings sorted into registry order, ready for application.
func ParsePolicyFile(path string) ([]ParsedSetting, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- policy path is operator-provided intentionally
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read policy file").
			WithContext("path", path)
	}
	return ParsePolicy(data, path)
}

// ParsePolicy parses a YAML settings document. The name is used in
// source locations.
func ParsePolicy(data []byte, name string) ([]ParsedSetting, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, ErrCodePolicyError, "invalid policy document").
			WithContext("path", name)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New(ErrCodePolicyError, "policy document must be a mapping of settings").
			WithContext("path", name)
	}

	var parsed []ParsedSetting
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]
		valNode := root.Content[i+1]
		src := Source{File: name, Line: keyNode.Line, Column: keyNode.Column}

		id, ok := SettingByName(keyNode.Value)
		if !ok {
			return nil, errors.New(ErrCodeUnknownSetting, "unknown setting "+keyNode.Value).
				WithContext("source", src.String())
		}
		val, err := coerceValue(SettingKind(id), valNode)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeBadValue, "bad value for setting "+keyNode.Value).
				WithContext("source", src.String())
		}
		parsed = append(parsed, ParsedSetting{ID: id, Value: val, Source: src})
	}

	// Application follows the registry's fixed order, not document order.
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].ID < parsed[j].ID })
	return parsed, nil
}

// coerceValue converts a YAML scalar to the setting's declared kind.
func coerceValue(kind Kind, node *yaml.Node) (Value, error) {
	if node.Kind != yaml.ScalarNode {
		return Value{}, errors.New(ErrCodeBadValue, "setting values must be scalars")
	}
	text := node.Value

	switch kind {
	case KindFlag:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, errors.New(ErrCodeBadValue, "expected a boolean, got "+text)
		}
		return FlagValue(b), nil

	case KindInt:
		// Priority settings also accept syslog severity names.
		if p, ok := ParsePriority(text); ok {
			return IntValue(int(p)), nil
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return Value{}, errors.New(ErrCodeBadValue, "expected an integer, got "+text)
		}
		return IntValue(n), nil

	case KindString:
		return StringValue(text), nil

	case KindMode:
		m, err := strconv.ParseUint(strings.TrimPrefix(text, "0o"), 8, 32)
		if err != nil {
			return Value{}, errors.New(ErrCodeBadValue, "expected octal permission bits, got "+text)
		}
		return ModeValue(fs.FileMode(m)), nil

	case KindTuple:
		t, ok := ParseTuple(text)
		if !ok {
			return Value{}, errors.New(ErrCodeBadValue, "unknown enumerated value "+text)
		}
		return TupleValue(t), nil

	default:
		return Value{}, errors.New(ErrCodeBadValue, "unsupported value kind")
	}
}

// ApplyParsed applies parsed settings through the registry. Application
// aborts on the first failure: resolution and allocation failures are
// fatal to the policy load, while cross-setting inconsistencies are
// already resolved inside the callbacks and never surface here.
func (ctx *EvalContext) ApplyParsed(settings []ParsedSetting) error {
	for _, s := range settings {
		if err := ctx.Apply(s.ID, s.Value, OpSet, s.Source); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFile applies front-end defaults and then the settings from a
// policy file. It is the usual entry point for a policy-load driver.
func (ctx *EvalContext) ApplyFile(path string) error {
	if err := ctx.ApplyDefaults(); err != nil {
		return err
	}
	parsed, err := ParsePolicyFile(path)
	if err != nil {
		return err
	}
	return ctx.ApplyParsed(parsed)
}
