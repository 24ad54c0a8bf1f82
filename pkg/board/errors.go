package board

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCategory is returned when a category is not part of the competition.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownChallenge is returned when a challenge does not exist in its category.
	ErrUnknownChallenge = errors.New("unknown challenge")

	// ErrUnknownVuln is returned when a vulnerability does not exist on its challenge.
	// Callers list VulnNames in their own reply.
	ErrUnknownVuln = errors.New("unknown vulnerability")

	// ErrInvalidName is returned for names the board format cannot carry.
	ErrInvalidName = errors.New("invalid name")

	// ErrMalformedBoardLine marks a board line the parser skipped. It never
	// escapes Parse; it is only found in ParseResult.Skipped.
	ErrMalformedBoardLine = errors.New("malformed board line")
)

// validateName rejects names that would corrupt the rendered board or be
// misread by the parser.
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s name is empty", ErrInvalidName, kind)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: %s name %q has surrounding whitespace", ErrInvalidName, kind, name)
	}
	if strings.ContainsAny(name, fieldDelimiter+"\n\r") {
		return fmt.Errorf("%w: %s name %q contains a delimiter", ErrInvalidName, kind, name)
	}
	if strings.HasPrefix(name, separatorPrefix) || strings.HasPrefix(name, fencePrefix) || strings.HasPrefix(name, "\x1b") {
		return fmt.Errorf("%w: %s name %q starts with a board marker", ErrInvalidName, kind, name)
	}
	return nil
}

// validatePlayer additionally forbids the assignee separator and the status
// glyphs, which share the player column.
func validatePlayer(name string) error {
	if err := validateName("player", name); err != nil {
		return err
	}
	if strings.Contains(name, ",") {
		return fmt.Errorf("%w: player name %q contains a comma", ErrInvalidName, name)
	}
	if strings.Contains(name, glyphSolved) || strings.Contains(name, glyphUnsolved) {
		return fmt.Errorf("%w: player name %q contains a status glyph", ErrInvalidName, name)
	}
	return nil
}
