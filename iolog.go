// iolog.go: I/O-log path generation for Aegis
//
// Builds per-session log paths from an operator-configurable template.
// Each session gets a six-character sequence identifier, unique within
// the log root and formatted as three two-character segments to bound
// per-directory fan-out.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
	"golang.org/x/sys/unix"
)

// SequenceIDLen is the length of a session sequence identifier.
const SequenceIDLen = 6

const seqAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxSequenceID is the number of distinct identifiers (36^6).
const maxSequenceID = 36 * 36 * 36 * 36 * 36 * 36

// formatSequenceID renders n as a six-character base-36 identifier.
func formatSequenceID(n uint64) string {
	var buf [SequenceIDLen]byte
	for i := SequenceIDLen - 1; i >= 0; i-- {
		buf[i] = seqAlphabet[n%36]
		n /= 36
	}
	return string(buf[:])
}

// parseSequenceID parses a six-character base-36 identifier.
func parseSequenceID(s string) (uint64, error) {
	if len(s) != SequenceIDLen {
		return 0, errors.New(ErrCodeBadValue, "sequence id must be six characters").
			WithContext("value", s)
	}
	var n uint64
	for i := 0; i < SequenceIDLen; i++ {
		idx := strings.IndexByte(seqAlphabet, s[i])
		if idx < 0 {
			return 0, errors.New(ErrCodeBadValue, "sequence id contains invalid character").
				WithContext("value", s)
		}
		n = n*36 + uint64(idx)
	}
	return n, nil
}

// SequenceSource is the external monotonic-ID collaborator. NextID
// returns a six-character identifier unique within the given log root,
// or an error when the root is unwritable or the counter is exhausted.
type SequenceSource interface {
	NextID(logDir string) (string, error)
}

// FileSequenceSource advances a counter file under the log root. The
// file holds the identifier of the last session; NextID increments it
// under an exclusive lock so concurrent evaluators never collide.
type FileSequenceSource struct {
	// FileName of the counter file within the log root.
	FileName string
}

// NewFileSequenceSource creates the default file-backed sequence source.
func NewFileSequenceSource() *FileSequenceSource {
	return &FileSequenceSource{FileName: "seq"}
}

// NextID implements SequenceSource.
func (s *FileSequenceSource) NextID(logDir string) (string, error) {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "log root is not writable").
			WithContext("dir", logDir)
	}

	path := filepath.Join(logDir, s.FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- path is under the operator-configured log root
	if err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "failed to open sequence file").
			WithContext("path", path)
	}
	defer func() { _ = f.Close() }()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "failed to lock sequence file").
			WithContext("path", path)
	}
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "failed to read sequence file").
			WithContext("path", path)
	}

	var last uint64
	if stored := strings.TrimSpace(string(data)); stored != "" {
		last, err = parseSequenceID(stored)
		if err != nil {
			return "", err
		}
	}

	next := last + 1
	if next >= maxSequenceID {
		return "", errors.New(ErrCodeSequenceExhausted, "sequence counter exhausted").
			WithContext("dir", logDir)
	}

	id := formatSequenceID(next)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "failed to rewind sequence file")
	}
	if err := f.Truncate(0); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "failed to truncate sequence file")
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError, "failed to write sequence file").
			WithContext("path", path)
	}
	return id, nil
}

// pathFiller produces the value of one template escape.
type pathFiller func(ctx *EvalContext) (string, error)

type pathEscape struct {
	name string
	fill pathFiller
}

// Note: "seq" must be first in the list; lookupEscape relies on that for
// its fast path.
var pathEscapes = []pathEscape{
	{"seq", fillSeq},
	{"user", fillUser},
	{"group", fillGroup},
	{"runas_user", fillRunasUser},
	{"runas_group", fillRunasGroup},
	{"hostname", fillHostname},
	{"command", fillCommand},
}

// lookupEscape finds the filler for an escape name. The "seq" escape is
// checked by direct comparison against the first slot before the ordered
// scan.
func lookupEscape(name string) (pathFiller, bool) {
	if name == pathEscapes[0].name {
		return pathEscapes[0].fill, true
	}
	for _, e := range pathEscapes[1:] {
		if e.name == name {
			return e.fill, true
		}
	}
	return nil, false
}

// fillSeq expands to the session sequence identifier as three
// two-character segments, e.g. "00/00/01". The identifier is allocated
// lazily on first use and cached for the life of the context so repeated
// expansions reuse it.
func fillSeq(ctx *EvalContext) (string, error) {
	if ctx.sessionID == "" {
		id, err := ctx.sequence.NextID(ctx.iolog.Dir)
		if err != nil {
			return "", err
		}
		if len(id) != SequenceIDLen {
			return "", errors.New(ErrCodeBadValue, "sequence source returned malformed id").
				WithContext("id", id)
		}
		ctx.sessionID = id
	}
	id := ctx.sessionID
	return id[0:2] + "/" + id[2:4] + "/" + id[4:6], nil
}

func fillUser(ctx *EvalContext) (string, error) {
	return ctx.invoker.Name, nil
}

// fillGroup expands to the invoker's primary group name, falling back to
// "#<gid>" when the group is unresolvable.
func fillGroup(ctx *EvalContext) (string, error) {
	if g, ok := ctx.groups.LookupGroupID(ctx.invoker.GID); ok {
		return g.Name, nil
	}
	return fmt.Sprintf("#%d", ctx.invoker.GID), nil
}

func fillRunasUser(ctx *EvalContext) (string, error) {
	return ctx.target.Name, nil
}

// fillRunasGroup prefers the target's pre-resolved group name, then a
// lookup by gid, then the numeric fallback.
func fillRunasGroup(ctx *EvalContext) (string, error) {
	if ctx.target.GroupName != "" {
		return ctx.target.GroupName, nil
	}
	if g, ok := ctx.groups.LookupGroupID(ctx.target.GID); ok {
		return g.Name, nil
	}
	return fmt.Sprintf("#%d", ctx.target.GID), nil
}

func fillHostname(ctx *EvalContext) (string, error) {
	return ctx.invoker.Host.Short(), nil
}

// fillCommand expands to the already-normalized base name of the
// resolved command, never a chroot-relative or absolute path.
func fillCommand(ctx *EvalContext) (string, error) {
	return ctx.command.Base, nil
}

// ExpandIOLogPath expands %{name} escapes in tmpl using the context's
// filler registry. "%%" expands to a literal percent; unrecognized
// escapes are kept as-is. The result is capped at the configured
// maximum path length.
func (ctx *EvalContext) ExpandIOLogPath(tmpl string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}
		if tmpl[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		if tmpl[i+1] != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(tmpl[i+2:], '}')
		if end < 0 {
			return "", errors.New(ErrCodeTemplateError, "unterminated escape in path template").
				WithContext("template", tmpl)
		}
		name := tmpl[i+2 : i+2+end]
		fill, ok := lookupEscape(name)
		if !ok {
			// Unknown escapes pass through untouched.
			b.WriteString(tmpl[i : i+3+end])
			i += 2 + end
			continue
		}
		value, err := fill(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
		i += 2 + end
	}

	path := b.String()
	if len(path) > ctx.iolog.MaxPathLen {
		return "", errors.New(ErrCodePathTooLong, "expanded path exceeds maximum length").
			WithContext("length", len(path)).
			WithContext("max", ctx.iolog.MaxPathLen)
	}
	return path, nil
}

// IOLogPath expands the configured template and joins it under the log
// root, yielding the full per-session path.
func (ctx *EvalContext) IOLogPath() (string, error) {
	rel, err := ctx.ExpandIOLogPath(ctx.iolog.Template)
	if err != nil {
		return "", err
	}
	return filepath.Join(ctx.iolog.Dir, rel), nil
}
