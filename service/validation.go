package service

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minRoomNameLength = 3
	maxRoomNameLength = 20
	maxRoomIdLength   = 64
	maxChatLength     = 1024 * 256
)

func ValidateRoomName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < minRoomNameLength {
		return errors.New("room name too short")
	}
	if n > maxRoomNameLength {
		return errors.New("room name too long")
	}
	return nil
}

// Slug derives the lookup key of a room from its display name: lower case
// with whitespace runs collapsed to a single dash.
func Slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

func ValidateRoomId(roomId string) error {
	if roomId == "" {
		return errors.New("room id is required")
	}
	if len(roomId) > maxRoomIdLength {
		return errors.New("room id too long")
	}
	for _, r := range roomId {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.New("room id contains invalid characters")
		}
	}
	return nil
}

func ValidateChatMessage(message string) error {
	if message == "" {
		return errors.New("empty chat message")
	}
	if len(message) > maxChatLength {
		return errors.New("chat message too long")
	}
	return nil
}
