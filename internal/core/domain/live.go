package domain

import (
	"time"
)

type LiveID string
type Identity string
type ActorID int32

// MaxActorID bounds derived actor ids to the 31-bit range the media
// platform accepts for numeric uids.
const MaxActorID = int32(2147483647) // 2^31 - 1

type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

type LiveSession struct {
	ID          LiveID
	Title       string
	Description string
	Category    string
	Tags        []string
	HostID      Identity
	Channel     string
	IsPrivate   bool
	MaxViewers  int
	IsLive      bool
	ViewerCount int64
	StartedAt   time.Time
	EndedAt     *time.Time
}

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageGift   MessageType = "gift"
	MessageLike   MessageType = "like"
	MessageJoin   MessageType = "join"
	MessageLeave  MessageType = "leave"
	MessageSystem MessageType = "system"
)

type ChatMessage struct {
	ID        string
	LiveID    LiveID
	Sender    Identity
	Type      MessageType
	Content   string
	CreatedAt time.Time
}
