package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	MaxMessageBytes = 4096 // 4KB max frame size
	MaxTextChars    = 2000 // max character count
)

var (
	ErrEmptyText   = errors.New("protocol: message text is empty")
	ErrTextTooLong = errors.New("protocol: message text too long")
	ErrInvalidUTF8 = errors.New("protocol: message contains invalid UTF-8")
)

// ValidateText checks that a message meets transport requirements before
// it is handed to the engine.
func ValidateText(text string) error {
	if len(text) == 0 {
		return ErrEmptyText
	}
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("%w: exceeds %d byte limit", ErrTextTooLong, MaxMessageBytes)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("%w: exceeds %d character limit", ErrTextTooLong, MaxTextChars)
	}
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	return nil
}
