package com

import "github.com/rs/xid"

// Uid is an opaque connection identity, stable for the lifetime of one
// transport connection. It is used both as a routing address and as a
// room-membership key.
type Uid struct {
	xid.ID
}

var NilUid = Uid{xid.NilID()}

func NewUid() Uid { return Uid{xid.New()} }

// UidFrom parses a wire identity, returns NilUid on garbage.
func UidFrom(s string) Uid {
	id, err := xid.FromString(s)
	if err != nil {
		return NilUid
	}
	return Uid{id}
}

func (u Uid) IsEmpty() bool { return u.IsNil() }
func (u Uid) Short() string { return u.String()[:3] + "." + u.String()[len(u.String())-3:] }
