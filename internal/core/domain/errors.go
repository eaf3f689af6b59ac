package domain

import "errors"

var (
	ErrLiveNotFound    = errors.New("live session not found")
	ErrLiveEnded       = errors.New("live session already ended")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidRole     = errors.New("invalid role")
)

// ParseRole maps the role names accepted on the wire onto the two roles the
// credential format knows. "host" and "viewer"/"audience" are legacy aliases
// kept for older clients.
func ParseRole(s string) (Role, error) {
	switch s {
	case "publisher", "host":
		return RolePublisher, nil
	case "subscriber", "audience", "viewer", "":
		return RoleSubscriber, nil
	}
	return "", ErrInvalidRole
}
