package board

import (
	"fmt"
	"strings"
)

// ParseResult is the best-effort reconstruction of a board.
type ParseResult struct {
	Competition *Competition
	Skipped     []SkippedLine
}

// SkippedLine is a board line the parser could not use.
type SkippedLine struct {
	Line int    // 1-based line number
	Text string // line as found, without the trailing newline
	Err  error  // wraps ErrMalformedBoardLine
}

// Parse rebuilds a Competition from text previously produced by Render,
// possibly edited by hand. It never fails: empty or unusable input yields an
// empty Competition, and each unusable line is reported in Skipped.
//
// Indented vulnerability lines are only read in Attack-Defense mode.
func Parse(text string, mode Mode) *ParseResult {
	res := &ParseResult{Competition: NewCompetition(mode, nil)}

	var (
		category  *Category
		challenge *Challenge
	)
	skip := func(n int, line, format string, a ...any) {
		res.Skipped = append(res.Skipped, SkippedLine{
			Line: n,
			Text: line,
			Err:  fmt.Errorf("%w: %s", ErrMalformedBoardLine, fmt.Sprintf(format, a...)),
		})
	}

	for i, raw := range strings.Split(text, "\n") {
		n := i + 1
		line := strings.TrimRight(raw, "\r")

		switch {
		case strings.TrimSpace(line) == "",
			strings.HasPrefix(line, separatorPrefix),
			strings.HasPrefix(line, fencePrefix):
			continue

		case strings.HasPrefix(line, headerStart):
			name, err := parseHeader(line)
			category, challenge = nil, nil
			if err != nil {
				skip(n, line, "%v", err)
				continue
			}
			category = res.Competition.addCategory(name)

		case strings.HasPrefix(line, " "):
			if mode != ModeAttackDefense {
				continue
			}
			if challenge == nil {
				skip(n, line, "vulnerability line outside a challenge")
				continue
			}
			v, err := parseVulnLine(line)
			if err != nil {
				skip(n, line, "%v", err)
				continue
			}
			challenge.vulns.Set(v.Name, v)

		default:
			ch, err := parseChallengeLine(line)
			challenge = nil
			if err != nil {
				skip(n, line, "%v", err)
				continue
			}
			if category == nil {
				skip(n, line, "challenge %q outside a category", ch.Name)
				continue
			}
			// A repeated name replaces the earlier record in place.
			category.put(ch)
			challenge = ch
		}
	}

	return res
}

func parseHeader(line string) (string, error) {
	rest := strings.TrimPrefix(line, headerStart)
	name, _, found := strings.Cut(rest, headerEnd)
	if !found {
		name, _, _ = strings.Cut(rest, fieldDelimiter)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("empty category header")
	}
	return name, nil
}

func parseChallengeLine(line string) (*Challenge, error) {
	name, status, ok := strings.Cut(line, fieldDelimiter)
	if !ok {
		return nil, fmt.Errorf("missing %q delimiter", fieldDelimiter)
	}
	if strings.Contains(status, fieldDelimiter) {
		return nil, fmt.Errorf("too many fields")
	}
	name = strings.TrimSpace(name)
	if err := validateName("challenge", name); err != nil {
		return nil, err
	}

	ch := newChallenge(name)
	status = strings.TrimSpace(status)
	switch {
	case strings.Contains(status, glyphSolved):
		ch.Solved = true
	case strings.Contains(status, glyphUnsolved):
	default:
		for _, p := range strings.Split(status, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ch.Assigned[p] = struct{}{}
			}
		}
	}
	return ch, nil
}

func parseVulnLine(line string) (*Vulnerability, error) {
	fields := strings.Split(line, fieldDelimiter)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	name := strings.TrimSpace(fields[0])
	if err := validateName("vulnerability", name); err != nil {
		return nil, err
	}
	return &Vulnerability{
		Name:      name,
		Patched:   strings.Contains(fields[1], glyphSolved),
		Exploited: strings.Contains(fields[2], glyphSolved),
	}, nil
}
