package board

import (
	"fmt"
	"strings"
)

// Render writes the competition as a board message.
// Identical state always produces identical text.
func (c *Competition) Render() string {
	var b strings.Builder
	b.WriteString(fenceOpen + "\n")
	for _, cat := range c.Categories() {
		b.WriteString(separatorLine + "\n")
		fmt.Fprintf(&b, "%s%-*s %s%s\n", headerStart, nameWidth, strings.ToUpper(cat.Name), headerEnd, fieldDelimiter)
		for _, ch := range cat.Challenges() {
			fmt.Fprintf(&b, "%-*s %s %s\n", nameWidth, ch.Name, fieldDelimiter, challengeStatus(ch))
			if c.Mode != ModeAttackDefense {
				continue
			}
			for _, v := range ch.Vulns() {
				fmt.Fprintf(&b, "%s%-*s %s %s%s %s %s%s\n",
					vulnIndent, vulnNameWidth, v.Name,
					fieldDelimiter, patchLabel, glyph(v.Patched),
					fieldDelimiter, exploitLabel, glyph(v.Exploited))
			}
		}
	}
	b.WriteString(separatorLine + "\n")
	b.WriteString(fenceClose)
	return b.String()
}

// challengeStatus is the right-hand column: solved wins over assignees.
func challengeStatus(ch *Challenge) string {
	switch {
	case ch.Solved:
		return glyphSolved
	case len(ch.Assigned) > 0:
		return strings.Join(ch.AssignedPlayers(), playerSeparator)
	default:
		return glyphUnsolved
	}
}
