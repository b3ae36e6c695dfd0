package api

type (
	JoinRoomRequest struct {
		RoomId   string `json:"roomId"`
		Password string `json:"password,omitempty"`
	}
	LeaveRoomRequest struct {
		RoomId string `json:"roomId"`
	}

	RoomCreatedEvent struct {
		RoomId      string `json:"roomId"`
		HasPassword bool   `json:"hasPassword"`
	}
	RoomJoinedEvent struct {
		RoomId      string `json:"roomId"`
		MemberCount int    `json:"memberCount"`
		HasPassword bool   `json:"hasPassword"`
	}
	RoomInfoEvent struct {
		RoomId      string   `json:"roomId"`
		MemberCount int      `json:"memberCount"`
		Members     []string `json:"members"`
	}
	// RoomErrorEvent is the payload of WrongPassword and RoomFull.
	RoomErrorEvent struct {
		RoomId string `json:"roomId"`
	}
	ErrorEvent struct {
		Message string `json:"message"`
	}

	UserEvent struct {
		Id string `json:"id"`
	}
)
