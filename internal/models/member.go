package models

// MemberSnapshot is the capability set of one chat member at the time of a
// membership query or a membership-change update.
type MemberSnapshot struct {
	CanRestrictMembers bool `json:"can_restrict_members"`
	IsOwner            bool `json:"is_owner"`
	IsAdministrator    bool `json:"is_administrator"`
}

// IsAdmin reports whether the member is the chat owner or an administrator.
func (s MemberSnapshot) IsAdmin() bool {
	return s.IsOwner || s.IsAdministrator
}

// ChatPermissions is the permission set applied by a restrict action.
// The zero value grants nothing.
type ChatPermissions struct {
	CanSendMessages       bool
	CanSendMediaMessages  bool
	CanSendPolls          bool
	CanSendOtherMessages  bool
	CanAddWebPagePreviews bool
	CanChangeInfo         bool
	CanInviteUsers        bool
	CanPinMessages        bool
}

// NoPermissions returns the permission set used to mute a member.
func NoPermissions() ChatPermissions {
	return ChatPermissions{}
}

// PhotoSize is one size variant of an inbound photo.
type PhotoSize struct {
	FileID       string
	FileUniqueID string
	Width        int
	Height       int
	FileSize     int
}

// ImageEvent is an inbound group message that carries a photo.
type ImageEvent struct {
	ChatID       int64
	ChatTitle    string
	SenderID     *int64 // nil for anonymous admins and channel posts
	LanguageCode string
	MessageID    int
	Photos       []PhotoSize
}

// MembershipEvent is a change of a member's capabilities in a chat.
type MembershipEvent struct {
	ChatID       int64
	UserID       int64
	IsBot        bool // the subject is this bot itself (my_chat_member)
	LanguageCode string
	Old          MemberSnapshot
	New          MemberSnapshot
}
