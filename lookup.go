// lookup.go: User and group lookup collaborators for Aegis
//
// Setting callbacks and path fillers resolve user/group references through
// these narrow interfaces rather than the system databases directly, so
// embedders can supply LDAP-backed, cached, or static sources.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"os/user"
	"strconv"

	"github.com/agilira/go-errors"
)

// Passwd is a resolved user database entry.
type Passwd struct {
	Name string
	UID  int
	GID  int
}

// Group is a resolved group database entry.
type Group struct {
	Name string
	GID  int
}

// PasswdSource looks up user entries.
type PasswdSource interface {
	LookupUser(name string) (Passwd, bool)
	LookupUserID(uid int) (Passwd, bool)
}

// GroupSource looks up group entries.
type GroupSource interface {
	LookupGroup(name string) (Group, bool)
	LookupGroupID(gid int) (Group, bool)
}

// ParseID parses the numeric part of a "#uid" style reference.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(err, ErrCodeBadValue, "invalid numeric id").
			WithContext("value", s)
	}
	if id < 0 {
		return 0, errors.New(ErrCodeBadValue, "negative id not allowed").
			WithContext("value", s)
	}
	return id, nil
}

// OSIdentitySource resolves users and groups through the operating
// system's user database via os/user.
type OSIdentitySource struct{}

// NewOSIdentitySource creates an OS-backed identity source.
func NewOSIdentitySource() *OSIdentitySource {
	return &OSIdentitySource{}
}

// LookupUser implements PasswdSource.
func (s *OSIdentitySource) LookupUser(name string) (Passwd, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return Passwd{}, false
	}
	return osPasswd(u)
}

// LookupUserID implements PasswdSource.
func (s *OSIdentitySource) LookupUserID(uid int) (Passwd, bool) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return Passwd{}, false
	}
	return osPasswd(u)
}

func osPasswd(u *user.User) (Passwd, bool) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Passwd{}, false
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Passwd{}, false
	}
	return Passwd{Name: u.Username, UID: uid, GID: gid}, true
}

// LookupGroup implements GroupSource.
func (s *OSIdentitySource) LookupGroup(name string) (Group, bool) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return Group{}, false
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return Group{}, false
	}
	return Group{Name: g.Name, GID: gid}, true
}

// LookupGroupID implements GroupSource.
func (s *OSIdentitySource) LookupGroupID(gid int) (Group, bool) {
	g, err := user.LookupGroupId(strconv.Itoa(gid))
	if err != nil {
		return Group{}, false
	}
	return Group{Name: g.Name, GID: gid}, true
}

// StaticIdentitySource is a map-backed identity source for embedders that
// carry their own user database, and for tests.
type StaticIdentitySource struct {
	users  map[string]Passwd
	uids   map[int]Passwd
	groups map[string]Group
	gids   map[int]Group
}

// NewStaticIdentitySource creates an empty static source.
func NewStaticIdentitySource() *StaticIdentitySource {
	return &StaticIdentitySource{
		users:  make(map[string]Passwd),
		uids:   make(map[int]Passwd),
		groups: make(map[string]Group),
		gids:   make(map[int]Group),
	}
}

// AddUser registers a user entry.
func (s *StaticIdentitySource) AddUser(p Passwd) *StaticIdentitySource {
	s.users[p.Name] = p
	s.uids[p.UID] = p
	return s
}

// AddGroup registers a group entry.
func (s *StaticIdentitySource) AddGroup(g Group) *StaticIdentitySource {
	s.groups[g.Name] = g
	s.gids[g.GID] = g
	return s
}

// LookupUser implements PasswdSource.
func (s *StaticIdentitySource) LookupUser(name string) (Passwd, bool) {
	p, ok := s.users[name]
	return p, ok
}

// LookupUserID implements PasswdSource.
func (s *StaticIdentitySource) LookupUserID(uid int) (Passwd, bool) {
	p, ok := s.uids[uid]
	return p, ok
}

// LookupGroup implements GroupSource.
func (s *StaticIdentitySource) LookupGroup(name string) (Group, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// LookupGroupID implements GroupSource.
func (s *StaticIdentitySource) LookupGroupID(gid int) (Group, bool) {
	g, ok := s.gids[gid]
	return g, ok
}
