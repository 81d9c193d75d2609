// settings.go: Setting-effect registry for Aegis
//
// Maps each recognized setting to the callback that translates its parsed
// value into runtime-state mutations. The table order is fixed at build
// time: application walks it sequentially and is never reorderable at
// runtime, so cross-setting effects stay deterministic and auditable.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"fmt"
	"io/fs"

	"github.com/agilira/go-errors"
)

// SettingID identifies one recognized setting. The numeric values follow
// the registry's fixed build-time order.
type SettingID int

const (
	SettingFQDN SettingID = iota
	SettingTimestampOwner
	SettingTTYTickets
	SettingUmask
	SettingRunChroot
	SettingSyslog
	SettingSyslogGoodPri
	SettingSyslogBadPri
	SettingSyslogMaxLen
	SettingLogLineLen
	SettingLogHost
	SettingLogFile
	SettingLogFormat
	SettingLogYear
	SettingMailerPath
	SettingMailerFlags
	SettingMailFrom
	SettingMailTo
	SettingMailSub
	SettingInterceptType
	SettingInterceptAllowSetID
	SettingLogInput
	SettingLogOutput

	settingCount
)

// Kind is the value type a setting accepts.
type Kind int

const (
	KindFlag Kind = iota
	KindInt
	KindString
	KindMode
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindInt:
		return "integer"
	case KindString:
		return "string"
	case KindMode:
		return "mode"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tuple is an enumerated setting value.
type Tuple int

const (
	TupleNone Tuple = iota
	TupleSudo
	TupleJSON
	TupleTrace
	TupleDSO
)

var tupleNames = map[string]Tuple{
	"sudo":  TupleSudo,
	"json":  TupleJSON,
	"trace": TupleTrace,
	"dso":   TupleDSO,
}

// ParseTuple maps an enumerated value name to its tuple.
func ParseTuple(name string) (Tuple, bool) {
	t, ok := tupleNames[name]
	return t, ok
}

func (t Tuple) String() string {
	for name, tu := range tupleNames {
		if tu == t {
			return name
		}
	}
	return "none"
}

// Value is the tagged union carrying one parsed setting value.
type Value struct {
	kind  Kind
	flag  bool
	num   int
	str   string
	mode  fs.FileMode
	tuple Tuple
}

// FlagValue builds a boolean value.
func FlagValue(b bool) Value { return Value{kind: KindFlag, flag: b} }

// IntValue builds an integer value.
func IntValue(n int) Value { return Value{kind: KindInt, num: n} }

// StringValue builds a string value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// ModeValue builds a permission-bits value.
func ModeValue(m fs.FileMode) Value { return Value{kind: KindMode, mode: m} }

// TupleValue builds an enumerated value.
func TupleValue(t Tuple) Value { return Value{kind: KindTuple, tuple: t} }

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// Flag returns the boolean payload.
func (v Value) Flag() bool { return v.flag }

// Int returns the integer payload.
func (v Value) Int() int { return v.num }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Mode returns the permission-bits payload.
func (v Value) Mode() fs.FileMode { return v.mode }

// Tuple returns the enumerated payload.
func (v Value) Tuple() Tuple { return v.tuple }

// Op is the operation code accompanying a setting application. It
// distinguishes values set explicitly in policy text from defaults
// applied by the front end; callbacks consult it before applying
// implicit cross-setting defaults.
type Op int

const (
	// OpDefault is the front-end sentinel: the value was applied as a
	// default, not written by an operator.
	OpDefault Op = iota - 1
	// OpSet is an explicit assignment in policy text.
	OpSet
	// OpAdd is an explicit list addition in policy text.
	OpAdd
	// OpRemove is an explicit list removal in policy text.
	OpRemove
)

// Explicit reports whether the operation came from policy text.
func (op Op) Explicit() bool { return op != OpDefault }

// Source is the policy-text location of a setting for diagnostics.
type Source struct {
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// settingCallback applies one parsed value to the evaluation context.
type settingCallback func(ctx *EvalContext, val Value, op Op, src Source) error

type settingDef struct {
	name     string
	kind     Kind
	callback settingCallback
}

// settingTable is the fixed-order registry. Indexed by SettingID; the
// callbacks are bound in callbacks.go.
var settingTable = [settingCount]settingDef{
	SettingFQDN:                {name: "fqdn", kind: KindFlag, callback: cbFQDN},
	SettingTimestampOwner:      {name: "timestampowner", kind: KindString, callback: cbTimestampOwner},
	SettingTTYTickets:          {name: "tty_tickets", kind: KindFlag, callback: cbTTYTickets},
	SettingUmask:               {name: "umask", kind: KindMode, callback: cbUmask},
	SettingRunChroot:           {name: "runchroot", kind: KindString, callback: cbRunChroot},
	SettingSyslog:              {name: "syslog", kind: KindFlag, callback: cbSyslog},
	SettingSyslogGoodPri:       {name: "syslog_goodpri", kind: KindInt, callback: cbSyslogGoodPri},
	SettingSyslogBadPri:        {name: "syslog_badpri", kind: KindInt, callback: cbSyslogBadPri},
	SettingSyslogMaxLen:        {name: "syslog_maxlen", kind: KindInt, callback: cbSyslogMaxLen},
	SettingLogLineLen:          {name: "loglinelen", kind: KindInt, callback: cbLogLineLen},
	SettingLogHost:             {name: "log_host", kind: KindFlag, callback: cbLogHost},
	SettingLogFile:             {name: "logfile", kind: KindString, callback: cbLogFile},
	SettingLogFormat:           {name: "log_format", kind: KindTuple, callback: cbLogFormat},
	SettingLogYear:             {name: "log_year", kind: KindFlag, callback: cbLogYear},
	SettingMailerPath:          {name: "mailerpath", kind: KindString, callback: cbMailerPath},
	SettingMailerFlags:         {name: "mailerflags", kind: KindString, callback: cbMailerFlags},
	SettingMailFrom:            {name: "mailfrom", kind: KindString, callback: cbMailFrom},
	SettingMailTo:              {name: "mailto", kind: KindString, callback: cbMailTo},
	SettingMailSub:             {name: "mailsub", kind: KindString, callback: cbMailSub},
	SettingInterceptType:       {name: "intercept_type", kind: KindTuple, callback: cbInterceptType},
	SettingInterceptAllowSetID: {name: "intercept_allow_setid", kind: KindFlag, callback: cbInterceptAllowSetID},
	SettingLogInput:            {name: "log_input", kind: KindFlag, callback: cbLogInput},
	SettingLogOutput:           {name: "log_output", kind: KindFlag, callback: cbLogOutput},
}

// SettingName returns the policy-text name of a setting.
func SettingName(id SettingID) string {
	if id < 0 || id >= settingCount {
		return "unknown"
	}
	return settingTable[id].name
}

// SettingKind returns the value kind a setting accepts.
func SettingKind(id SettingID) Kind {
	if id < 0 || id >= settingCount {
		return KindFlag
	}
	return settingTable[id].kind
}

// SettingByName resolves a policy-text name to its setting. The scan
// follows the registry's fixed order.
func SettingByName(name string) (SettingID, bool) {
	for id := SettingID(0); id < settingCount; id++ {
		if settingTable[id].name == name {
			return id, true
		}
	}
	return 0, false
}

// Settings returns every setting in registry order.
func Settings() []SettingID {
	ids := make([]SettingID, settingCount)
	for i := range ids {
		ids[i] = SettingID(i)
	}
	return ids
}

// Apply dispatches one setting value to its effect callback. The applied
// value is recorded before dispatch so callbacks can consult sibling
// settings. On callback failure the recorded value is rolled back and the
// error is returned with its source location attached.
func (ctx *EvalContext) Apply(id SettingID, val Value, op Op, src Source) error {
	if id < 0 || id >= settingCount {
		return errors.New(ErrCodeUnknownSetting, "setting id out of range").
			WithContext("id", int(id))
	}
	def := settingTable[id]
	if val.Kind() != def.kind {
		return errors.New(ErrCodeBadValue,
			fmt.Sprintf("setting %s expects a %s value, got %s", def.name, def.kind, val.Kind())).
			WithContext("setting", def.name).
			WithContext("source", src.String())
	}

	prev, hadPrev := ctx.vals[id]
	ctx.vals[id] = val
	if err := def.callback(ctx, val, op, src); err != nil {
		if hadPrev {
			ctx.vals[id] = prev
		} else {
			delete(ctx.vals, id)
		}
		return err
	}
	return nil
}

// ApplyByName resolves a setting name and dispatches its value.
func (ctx *EvalContext) ApplyByName(name string, val Value, op Op, src Source) error {
	id, ok := SettingByName(name)
	if !ok {
		return errors.New(ErrCodeUnknownSetting, "unknown setting "+name).
			WithContext("source", src.String())
	}
	return ctx.Apply(id, val, op, src)
}

// SettingValue is one (setting, value) pair used for default application.
type SettingValue struct {
	ID    SettingID
	Value Value
}

// DefaultSettings returns the front-end defaults, in registry order.
func DefaultSettings() []SettingValue {
	return []SettingValue{
		{SettingFQDN, FlagValue(false)},
		{SettingTTYTickets, FlagValue(true)},
		{SettingUmask, ModeValue(AccessPerms)},
		{SettingSyslog, FlagValue(true)},
		{SettingSyslogGoodPri, IntValue(int(PriorityNotice))},
		{SettingSyslogBadPri, IntValue(int(PriorityAlert))},
		{SettingSyslogMaxLen, IntValue(960)},
		{SettingLogHost, FlagValue(false)},
		{SettingLogFormat, TupleValue(TupleSudo)},
		{SettingLogYear, FlagValue(false)},
		{SettingInterceptType, TupleValue(TupleTrace)},
		{SettingInterceptAllowSetID, FlagValue(false)},
		{SettingLogInput, FlagValue(false)},
		{SettingLogOutput, FlagValue(false)},
	}
}

// ApplyDefaults applies the front-end defaults with the OpDefault
// sentinel so callbacks can tell them from operator assignments.
func (ctx *EvalContext) ApplyDefaults() error {
	for _, sv := range DefaultSettings() {
		src := Source{File: "<defaults>"}
		if err := ctx.Apply(sv.ID, sv.Value, OpDefault, src); err != nil {
			return err
		}
	}
	return nil
}
