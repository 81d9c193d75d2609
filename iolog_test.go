// iolog_test.go: Testing Aegis I/O-log path generation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSequenceIDFormat(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		cases := []struct {
			n  uint64
			id string
		}{
			{0, "000000"},
			{1, "000001"},
			{35, "00000Z"},
			{36, "000010"},
			{maxSequenceID - 1, "ZZZZZZ"},
		}
		for _, tc := range cases {
			if got := formatSequenceID(tc.n); got != tc.id {
				t.Errorf("formatSequenceID(%d) = %q, want %q", tc.n, got, tc.id)
			}
			n, err := parseSequenceID(tc.id)
			if err != nil {
				t.Fatalf("parseSequenceID(%q) failed: %v", tc.id, err)
			}
			if n != tc.n {
				t.Errorf("parseSequenceID(%q) = %d, want %d", tc.id, n, tc.n)
			}
		}
	})

	t.Run("rejects_bad_input", func(t *testing.T) {
		for _, bad := range []string{"", "00001", "0000001", "00000a", "0000-1"} {
			if _, err := parseSequenceID(bad); err == nil {
				t.Errorf("parseSequenceID(%q) should fail", bad)
			}
		}
	})
}

func TestFileSequenceSource(t *testing.T) {
	t.Run("first_allocation_is_one", func(t *testing.T) {
		dir := t.TempDir()
		src := NewFileSequenceSource()
		id, err := src.NextID(dir)
		if err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		if id != "000001" {
			t.Errorf("first id = %q, want 000001", id)
		}
	})

	t.Run("increments_monotonically", func(t *testing.T) {
		dir := t.TempDir()
		src := NewFileSequenceSource()
		want := []string{"000001", "000002", "000003"}
		for _, w := range want {
			id, err := src.NextID(dir)
			if err != nil {
				t.Fatalf("NextID failed: %v", err)
			}
			if id != w {
				t.Errorf("id = %q, want %q", id, w)
			}
		}
	})

	t.Run("persists_across_instances", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := NewFileSequenceSource().NextID(dir); err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		id, err := NewFileSequenceSource().NextID(dir)
		if err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		if id != "000002" {
			t.Errorf("id = %q, want 000002 from the persisted counter", id)
		}
	})

	t.Run("creates_log_root", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "iologs")
		if _, err := NewFileSequenceSource().NextID(dir); err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "seq")); err != nil {
			t.Errorf("counter file missing: %v", err)
		}
	})

	t.Run("exhaustion_at_last_identifier", func(t *testing.T) {
		dir := t.TempDir()
		src := NewFileSequenceSource()
		if err := os.WriteFile(filepath.Join(dir, src.FileName), []byte("ZZZZZZ\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := src.NextID(dir); err == nil {
			t.Error("allocation past ZZZZZZ must fail")
		}
	})

	t.Run("corrupt_counter_fails", func(t *testing.T) {
		dir := t.TempDir()
		src := NewFileSequenceSource()
		if err := os.WriteFile(filepath.Join(dir, src.FileName), []byte("bogus!\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := src.NextID(dir); err == nil {
			t.Error("corrupt counter file must fail, not silently reset")
		}
	})
}

func TestLookupEscape(t *testing.T) {
	t.Run("seq_is_first", func(t *testing.T) {
		if pathEscapes[0].name != "seq" {
			t.Fatalf("first escape is %q, want seq", pathEscapes[0].name)
		}
	})

	t.Run("all_names_resolve", func(t *testing.T) {
		for _, e := range pathEscapes {
			if _, ok := lookupEscape(e.name); !ok {
				t.Errorf("escape %q not found", e.name)
			}
		}
	})

	t.Run("unknown_name", func(t *testing.T) {
		if _, ok := lookupEscape("nope"); ok {
			t.Error("unknown escape must not resolve")
		}
	})
}

func TestExpandIOLogPath(t *testing.T) {
	t.Run("seq_segments", func(t *testing.T) {
		ctx := newTestContext(t, func(o *Options) {
			o.Sequence = &fakeSequence{id: "A1B2C3"}
		})
		got, err := ctx.ExpandIOLogPath("%{seq}")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "A1/B2/C3" {
			t.Errorf("got %q, want A1/B2/C3", got)
		}
	})

	t.Run("seq_allocated_once_per_session", func(t *testing.T) {
		seq := &fakeSequence{id: "000007"}
		ctx := newTestContext(t, func(o *Options) { o.Sequence = seq })

		for i := 0; i < 3; i++ {
			if _, err := ctx.ExpandIOLogPath("%{seq}"); err != nil {
				t.Fatalf("expand failed: %v", err)
			}
		}
		if seq.calls != 1 {
			t.Errorf("sequence allocated %d times, want 1", seq.calls)
		}
	})

	t.Run("identity_escapes", func(t *testing.T) {
		ctx := newTestContext(t, nil)
		got, err := ctx.ExpandIOLogPath("%{user}/%{group}/%{runas_user}/%{runas_group}/%{hostname}/%{command}")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "alice/staff/root/wheel/client/id" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("group_numeric_fallback", func(t *testing.T) {
		ctx := newTestContext(t, func(o *Options) {
			o.Invoker.GID = 4242
			o.Target.GID = 9999
		})
		got, err := ctx.ExpandIOLogPath("%{group}:%{runas_group}")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "#4242:#9999" {
			t.Errorf("got %q, want #4242:#9999", got)
		}
	})

	t.Run("runas_group_prefers_preset_name", func(t *testing.T) {
		ctx := newTestContext(t, func(o *Options) {
			o.Target.GroupName = "operator"
		})
		got, err := ctx.ExpandIOLogPath("%{runas_group}")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "operator" {
			t.Errorf("got %q, want operator", got)
		}
	})

	t.Run("literal_percent", func(t *testing.T) {
		ctx := newTestContext(t, nil)
		got, err := ctx.ExpandIOLogPath("100%%/%{user}")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "100%/alice" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unknown_escape_passes_through", func(t *testing.T) {
		ctx := newTestContext(t, nil)
		got, err := ctx.ExpandIOLogPath("%{user}/%{epoch}")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "alice/%{epoch}" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("bare_percent_is_literal", func(t *testing.T) {
		ctx := newTestContext(t, nil)
		got, err := ctx.ExpandIOLogPath("50% off")
		if err != nil {
			t.Fatalf("expand failed: %v", err)
		}
		if got != "50% off" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unterminated_escape_fails", func(t *testing.T) {
		ctx := newTestContext(t, nil)
		if _, err := ctx.ExpandIOLogPath("%{user"); err == nil {
			t.Error("unterminated escape must fail")
		}
	})

	t.Run("length_cap", func(t *testing.T) {
		ctx := newTestContext(t, func(o *Options) {
			o.IOLog.MaxPathLen = 16
		})
		if _, err := ctx.ExpandIOLogPath(strings.Repeat("x", 17)); err == nil {
			t.Error("expansion past the length cap must fail")
		}
		if got, err := ctx.ExpandIOLogPath(strings.Repeat("x", 16)); err != nil || len(got) != 16 {
			t.Errorf("expansion at the cap should succeed, got %q err %v", got, err)
		}
	})
}

func TestIOLogPath(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, func(o *Options) {
		o.IOLog.Dir = dir
		o.IOLog.Template = "%{user}/%{seq}"
	})

	got, err := ctx.IOLogPath()
	if err != nil {
		t.Fatalf("IOLogPath failed: %v", err)
	}
	want := filepath.Join(dir, "alice", "00", "00", "01")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
