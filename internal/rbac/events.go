package rbac

import (
	"time"

	"github.com/google/uuid"
)

// UserEventKind names an account change worth telling the user about.
type UserEventKind string

const (
	UserEventCreated         UserEventKind = "created"
	UserEventActivated       UserEventKind = "activated"
	UserEventDeactivated     UserEventKind = "deactivated"
	UserEventPasswordChanged UserEventKind = "password_changed"
	UserEventRoleChanged     UserEventKind = "role_changed"
)

// UserEvent is emitted after an account change commits.
type UserEvent struct {
	ID       string        `json:"id"`
	Kind     UserEventKind `json:"kind"`
	UserID   int64         `json:"user_id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	RoleID   int64         `json:"role_id"`
	At       time.Time     `json:"at"`
}

func newUserEvent(kind UserEventKind, u User) UserEvent {
	return UserEvent{
		ID:       uuid.NewString(),
		Kind:     kind,
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		RoleID:   u.RoleID,
		At:       time.Now().UTC(),
	}
}
