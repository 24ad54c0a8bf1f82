package board

import "strings"

// Board layout constants. Render and Parse both depend on these; change them
// together or not at all.
const (
	fenceOpen  = "```ansi"
	fenceClose = "```"

	// Lines starting with these are structural and skipped by the parser.
	separatorPrefix = "-"
	fencePrefix     = "`"

	headerStart = "\x1b[1;37m"
	headerEnd   = "\x1b[0;37m"

	// vulnIndent marks a vulnerability record under the previous challenge.
	vulnIndent = "          "

	fieldDelimiter  = "|"
	playerSeparator = ", "

	glyphSolved   = "✅"
	glyphUnsolved = "❌"

	nameWidth     = 30
	vulnNameWidth = 20
	rightWidth    = 50

	patchLabel   = "patch: "
	exploitLabel = "exploit: "
)

var separatorLine = strings.Repeat("-", nameWidth) + "-+" + strings.Repeat("-", rightWidth)

func glyph(ok bool) string {
	if ok {
		return glyphSolved
	}
	return glyphUnsolved
}

// LooksLikeBoard reports whether text opens with the board fence. It is a cheap
// check for picking board messages out of a channel, not a validation.
func LooksLikeBoard(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), fenceOpen)
}
