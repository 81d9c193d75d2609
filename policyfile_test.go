// policyfile_test.go: Testing Aegis policy-settings file loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePolicy(t *testing.T) {
	t.Run("coerces_each_kind", func(t *testing.T) {
		parsed, err := ParsePolicy([]byte(`
tty_tickets: false
syslog_maxlen: 1024
logfile: /var/log/aegis.log
umask: "0o077"
log_format: json
`), "policy.yaml")
		if err != nil {
			t.Fatalf("ParsePolicy failed: %v", err)
		}
		if len(parsed) != 5 {
			t.Fatalf("parsed %d settings, want 5", len(parsed))
		}

		byID := make(map[SettingID]Value)
		for _, s := range parsed {
			byID[s.ID] = s.Value
		}
		if byID[SettingTTYTickets].Flag() {
			t.Error("tty_tickets should parse false")
		}
		if byID[SettingSyslogMaxLen].Int() != 1024 {
			t.Errorf("syslog_maxlen = %d", byID[SettingSyslogMaxLen].Int())
		}
		if byID[SettingLogFile].Str() != "/var/log/aegis.log" {
			t.Errorf("logfile = %q", byID[SettingLogFile].Str())
		}
		if byID[SettingUmask].Mode() != 0o077 {
			t.Errorf("umask = %#o", byID[SettingUmask].Mode())
		}
		if byID[SettingLogFormat].Tuple() != TupleJSON {
			t.Error("log_format should parse json")
		}
	})

	t.Run("sorted_into_registry_order", func(t *testing.T) {
		parsed, err := ParsePolicy([]byte(`
log_output: true
syslog: true
tty_tickets: true
`), "policy.yaml")
		if err != nil {
			t.Fatalf("ParsePolicy failed: %v", err)
		}
		for i := 1; i < len(parsed); i++ {
			if parsed[i-1].ID > parsed[i].ID {
				t.Fatalf("settings not in registry order: %d before %d",
					parsed[i-1].ID, parsed[i].ID)
			}
		}
	})

	t.Run("source_locations_recorded", func(t *testing.T) {
		parsed, err := ParsePolicy([]byte("syslog: true\ntty_tickets: false\n"), "p.yaml")
		if err != nil {
			t.Fatalf("ParsePolicy failed: %v", err)
		}
		for _, s := range parsed {
			if s.Source.File != "p.yaml" || s.Source.Line == 0 {
				t.Errorf("setting %s missing source: %+v", SettingName(s.ID), s.Source)
			}
		}
	})

	t.Run("priority_names_accepted", func(t *testing.T) {
		parsed, err := ParsePolicy([]byte("syslog_goodpri: info\nsyslog_badpri: crit\n"), "p.yaml")
		if err != nil {
			t.Fatalf("ParsePolicy failed: %v", err)
		}
		if parsed[0].Value.Int() != int(PriorityInfo) {
			t.Errorf("goodpri = %d", parsed[0].Value.Int())
		}
		if parsed[1].Value.Int() != int(PriorityCrit) {
			t.Errorf("badpri = %d", parsed[1].Value.Int())
		}
	})

	t.Run("unknown_setting_rejected", func(t *testing.T) {
		if _, err := ParsePolicy([]byte("no_such_setting: true\n"), "p.yaml"); err == nil {
			t.Error("unknown setting must fail the parse")
		}
	})

	t.Run("bad_value_rejected", func(t *testing.T) {
		cases := []string{
			"tty_tickets: maybe\n",
			"syslog_maxlen: lots\n",
			"umask: \"0o999\"\n",
			"log_format: xml\n",
			"logfile: [a, b]\n",
		}
		for _, c := range cases {
			if _, err := ParsePolicy([]byte(c), "p.yaml"); err == nil {
				t.Errorf("document %q must fail", c)
			}
		}
	})

	t.Run("non_mapping_rejected", func(t *testing.T) {
		if _, err := ParsePolicy([]byte("- syslog\n- logfile\n"), "p.yaml"); err == nil {
			t.Error("sequence document must fail")
		}
	})

	t.Run("empty_document", func(t *testing.T) {
		parsed, err := ParsePolicy(nil, "p.yaml")
		if err != nil {
			t.Fatalf("empty document failed: %v", err)
		}
		if len(parsed) != 0 {
			t.Errorf("parsed %d settings from nothing", len(parsed))
		}
	})
}

func TestApplyFile(t *testing.T) {
	t.Run("defaults_then_policy", func(t *testing.T) {
		path := writePolicy(t, `
tty_tickets: false
umask: "0o022"
log_output: true
syslog_badpri: err
`)
		ctx := newTestContext(t, nil)
		if err := ctx.ApplyFile(path); err != nil {
			t.Fatalf("ApplyFile failed: %v", err)
		}

		if ctx.Timestamp().Scope != ScopeGlobal {
			t.Error("policy must override the per-terminal default scope")
		}
		if ctx.Umask() != 0o022 || !ctx.OverrideUmask() {
			t.Errorf("umask = %#o override = %t", ctx.Umask(), ctx.OverrideUmask())
		}
		if io := ctx.IOLog(); !io.LogStdout || !io.LogTTYOut {
			t.Error("log_output from policy must enable output capture")
		}
		if cfg := ctx.EventLog().Config(); cfg.RejectPriority != PriorityErr {
			t.Errorf("reject priority = %v", cfg.RejectPriority)
		}

		// Unmentioned settings keep their defaults.
		if cfg := ctx.EventLog().Config(); cfg.AcceptPriority != PriorityNotice {
			t.Errorf("accept priority = %v, want the default", cfg.AcceptPriority)
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		ctx := newTestContext(t, nil)
		if err := ctx.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("missing policy file must fail the load")
		}
	})

	t.Run("aborts_on_callback_failure", func(t *testing.T) {
		path := writePolicy(t, `
timestampowner: ghost
tty_tickets: false
`)
		ctx := newTestContext(t, nil)
		if err := ctx.ApplyFile(path); err == nil {
			t.Fatal("unresolvable owner must abort the load")
		}
		// tty_tickets sorts after timestampowner and must not have
		// been reached.
		if ctx.Timestamp().Scope != ScopeTTY {
			t.Error("settings after the failure point must stay at their defaults")
		}
	})
}
