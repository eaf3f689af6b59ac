package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ChannelRegex validates media channel names
	ChannelRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	// LiveIDRegex validates live session IDs, a "live_" prefix followed by
	// a uuid.
	LiveIDRegex = regexp.MustCompile(`^live_[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)
)

// Violation is a single field-level constraint failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations aggregates field-level failures from composed validators.
type Violations []Violation

func (v Violations) Error() string {
	parts := make([]string, 0, len(v))
	for _, viol := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", viol.Field, viol.Message))
	}
	return strings.Join(parts, "; ")
}

// Check runs validators in order and collects every violation instead of
// stopping at the first.
func Check(validators ...func() *Violation) Violations {
	var violations Violations
	for _, validate := range validators {
		if viol := validate(); viol != nil {
			violations = append(violations, *viol)
		}
	}
	return violations
}

// Field wraps a plain validator function into a Check-compatible closure.
func Field(name string, validate func() error) func() *Violation {
	return func() *Violation {
		if err := validate(); err != nil {
			return &Violation{Field: name, Message: err.Error()}
		}
		return nil
	}
}

// ValidateChannel validates a media channel name
func ValidateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("channel is required")
	}
	if !ChannelRegex.MatchString(channel) {
		return fmt.Errorf("channel must be 1-64 characters of letters, numbers, - and _")
	}
	return nil
}

// ValidateIdentity validates a caller identity string. Empty is allowed:
// an empty identity is the anonymous caller.
func ValidateIdentity(identity string) error {
	if len(identity) > 255 {
		return fmt.Errorf("identity is too long (max 255 characters)")
	}
	if !utf8.ValidString(identity) {
		return fmt.Errorf("identity contains invalid characters")
	}
	return nil
}

// ValidateLiveID validates a live session ID
func ValidateLiveID(liveID string) error {
	if liveID == "" {
		return fmt.Errorf("live ID is required")
	}
	if !LiveIDRegex.MatchString(liveID) {
		return fmt.Errorf("invalid live ID format")
	}
	return nil
}

// ValidateLiveTitle validates a live session title
func ValidateLiveTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > 100 {
		return fmt.Errorf("title is too long (max 100 characters)")
	}
	return nil
}

// ValidateDescription validates a live session description
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > 500 {
		return fmt.Errorf("description is too long (max 500 characters)")
	}
	return nil
}

// ValidateMaxViewers validates the viewer cap for a live session
func ValidateMaxViewers(maxViewers int) error {
	if maxViewers < 1 {
		return fmt.Errorf("max viewers must be at least 1")
	}
	if maxViewers > 10000 {
		return fmt.Errorf("max viewers is too high (max 10000)")
	}
	return nil
}

// ValidateMessageContent validates chat message content
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(content) > 200 {
		return fmt.Errorf("message is too long (max 200 characters)")
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("message contains invalid characters")
	}
	return nil
}

// ValidateMessageType validates chat message type
func ValidateMessageType(messageType string) error {
	validTypes := map[string]bool{
		"text":   true,
		"gift":   true,
		"like":   true,
		"join":   true,
		"leave":  true,
		"system": true,
	}
	if !validTypes[messageType] {
		return fmt.Errorf("invalid message type")
	}
	return nil
}

// ValidatePaginationLimit validates a list query limit
func ValidatePaginationLimit(limit int) error {
	if limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}
	if limit > 100 {
		return fmt.Errorf("limit is too high (max 100)")
	}
	return nil
}

// ValidateDurationSeconds validates a requested credential validity window
func ValidateDurationSeconds(seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if seconds > 86400 {
		return fmt.Errorf("duration is too long (max 86400 seconds)")
	}
	return nil
}
