package signaler

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ekinols/roomrtc/pkg/com"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidRoom   = errors.New("invalid room id")
	ErrWrongPassword = errors.New("wrong password")
	ErrRoomFull      = errors.New("room is full")
)

const DefaultRoomCapacity = 10

type room struct {
	id        string
	members   map[com.Uid]struct{}
	digest    []byte // bcrypt digest of the password, nil when unprotected
	createdAt time.Time
	creator   com.Uid
}

func (r *room) memberList() []com.Uid {
	list := make([]com.Uid, 0, len(r.members))
	for id := range r.members {
		list = append(list, id)
	}
	return list
}

// Registry tracks rooms, their membership, and the room every
// connection currently belongs to. One lock serializes all room
// mutations, which also covers the capacity and password checks.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*room
	sessions map[com.Uid]string
	capacity int
}

type JoinResult struct {
	RoomId      string
	Created     bool
	MemberCount int
	Protected   bool
	// Others are the members present before this join.
	Others []com.Uid
	// Left is set when the identity had to release another room first.
	Left *LeaveResult
}

type LeaveResult struct {
	RoomId      string
	MemberCount int
	Remaining   []com.Uid
	Deleted     bool
}

type RoomInfo struct {
	Id          string    `json:"roomId"`
	MemberCount int       `json:"memberCount"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultRoomCapacity
	}
	return &Registry{
		rooms:    make(map[string]*room, 10),
		sessions: make(map[com.Uid]string, 10),
		capacity: capacity,
	}
}

// Join adds the identity to the room, creating the room when it does
// not exist yet. Every failure leaves the registry untouched.
func (r *Registry) Join(id com.Uid, roomId, password string) (JoinResult, error) {
	roomId = strings.TrimSpace(roomId)
	if roomId == "" {
		return JoinResult{}, ErrInvalidRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := JoinResult{RoomId: roomId}
	rm, known := r.rooms[roomId]
	if known {
		if _, member := rm.members[id]; member {
			res.MemberCount = len(rm.members)
			res.Protected = rm.digest != nil
			return res, nil
		}
		if rm.digest != nil {
			if bcrypt.CompareHashAndPassword(rm.digest, []byte(password)) != nil {
				return res, ErrWrongPassword
			}
		}
		if len(rm.members) >= r.capacity {
			return res, ErrRoomFull
		}
	}

	// a connection belongs to at most one room
	if prev, ok := r.sessions[id]; ok {
		left := r.leaveLocked(id, prev)
		res.Left = &left
	}

	if !known {
		rm = &room{
			id:        roomId,
			members:   make(map[com.Uid]struct{}, 2),
			createdAt: time.Now(),
			creator:   id,
		}
		if password != "" {
			digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return res, err
			}
			rm.digest = digest
		}
		r.rooms[roomId] = rm
		res.Created = true
	} else {
		res.Others = rm.memberList()
	}

	rm.members[id] = struct{}{}
	r.sessions[id] = roomId
	res.MemberCount = len(rm.members)
	res.Protected = rm.digest != nil
	return res, nil
}

// Leave resolves the identity's room membership, whatever room it is.
// Idempotent: an untracked identity is a benign no-op.
func (r *Registry) Leave(id com.Uid) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomId, ok := r.sessions[id]
	if !ok {
		return LeaveResult{}, false
	}
	return r.leaveLocked(id, roomId), true
}

// LeaveRoom is the explicit leave-room request. The given room must
// match the identity's current room, otherwise nothing happens.
func (r *Registry) LeaveRoom(id com.Uid, roomId string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[id]
	if !ok || cur != strings.TrimSpace(roomId) {
		return LeaveResult{}, false
	}
	return r.leaveLocked(id, cur), true
}

func (r *Registry) leaveLocked(id com.Uid, roomId string) LeaveResult {
	delete(r.sessions, id)
	res := LeaveResult{RoomId: roomId}
	rm, ok := r.rooms[roomId]
	if !ok {
		res.Deleted = true
		return res
	}
	delete(rm.members, id)
	res.MemberCount = len(rm.members)
	if len(rm.members) == 0 {
		// an empty room dies together with its password
		delete(r.rooms, roomId)
		res.Deleted = true
		return res
	}
	res.Remaining = rm.memberList()
	return res
}

// RoomOf reports the room the identity is currently in.
func (r *Registry) RoomOf(id com.Uid) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomId, ok := r.sessions[id]
	return roomId, ok
}

func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Rooms makes a diagnostics snapshot. Password digests never leave the
// registry.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]RoomInfo, 0, len(r.rooms))
	for _, rm := range r.rooms {
		list = append(list, RoomInfo{
			Id:          rm.id,
			MemberCount: len(rm.members),
			HasPassword: rm.digest != nil,
			CreatedAt:   rm.createdAt,
		})
	}
	return list
}
