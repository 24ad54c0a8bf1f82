// Package board holds the state of one running CTF competition and its
// textual status board.
//
// # Overview
//
// A Competition is an ordered list of categories, each holding an ordered set
// of challenges. In Attack-Defense mode every challenge additionally tracks the
// vulnerabilities the team found in it, each with a patched and an exploited
// flag. StatusBoard owns the live Competition and serialises every mutation
// behind a single mutex, so the periodic renderer always sees a consistent
// snapshot.
//
// # Board format
//
// Render produces a single chat message wrapped in an ansi code fence:
//
//	```ansi
//	------------------------------+--------------------------------------------------
//	<bold>WEB                            <reset>|
//	baby-web                       | ✅
//	medium-web                     | alice, bob
//	hard-web                       | ❌
//	          sqli                 | patch: ✅ | exploit: ❌
//	------------------------------+--------------------------------------------------
//	```
//
// Parse is the inverse of Render. It is line oriented and best effort: lines it
// cannot understand are reported in ParseResult.Skipped and never abort the
// parse, because operators are free to hand-edit the posted board. The format
// constants live in format.go and are shared by both directions.
//
// # Usage Example
//
//	sb := board.New()
//	sb.Reset(board.ModeJeopardy, []string{"web", "pwn"})
//	if err := sb.AddChallenge("web", "baby-web"); err != nil {
//		return err
//	}
//	text := sb.Render()
//
//	// Later, after a restart:
//	res := board.Parse(text, board.ModeJeopardy)
//	sb.Reset(board.ModeJeopardy, []string{"web", "pwn"})
//	dropped := sb.Seed(res.Competition)
package board
