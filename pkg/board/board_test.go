package board

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(t *testing.T, mode Mode, categories ...string) *StatusBoard {
	t.Helper()
	sb := New()
	sb.Reset(mode, categories)
	return sb
}

func TestReset(t *testing.T) {
	sb := newTestBoard(t, ModeJeopardy, "web", "pwn")
	require.NoError(t, sb.AddChallenge("web", "baby-web"))

	sb.Reset(ModeAttackDefense, []string{"svc"})

	assert.Equal(t, ModeAttackDefense, sb.Mode())
	assert.Equal(t, []string{"svc"}, sb.Categories())
	assert.False(t, sb.HasCategory("web"))
	assert.Equal(t, Stats{}, sb.Stats())
}

func TestAddChallenge(t *testing.T) {
	t.Run("adds unsolved challenge", func(t *testing.T) {
		sb := newTestBoard(t, ModeJeopardy, "web")
		require.NoError(t, sb.AddChallenge("web", "baby-web"))

		snap := sb.Snapshot()
		require.Len(t, snap.Categories[0].Challenges, 1)
		ch := snap.Categories[0].Challenges[0]
		assert.Equal(t, "baby-web", ch.Name)
		assert.False(t, ch.Solved)
		assert.Empty(t, ch.Assigned)
		assert.Empty(t, ch.Vulns)
	})

	t.Run("unknown category", func(t *testing.T) {
		sb := newTestBoard(t, ModeJeopardy, "web")
		err := sb.AddChallenge("crypto", "rsa")
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		sb := newTestBoard(t, ModeJeopardy, "web")
		for _, name := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, sb.AddChallenge("web", name))
		}
		var names []string
		for _, ch := range sb.Snapshot().Categories[0].Challenges {
			names = append(names, ch.Name)
		}
		assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	})

	t.Run("rejects names the board cannot carry", func(t *testing.T) {
		sb := newTestBoard(t, ModeJeopardy, "web")
		for _, name := range []string{"", " padded", "a|b", "two\nlines", "-dash", "`tick"} {
			assert.ErrorIs(t, sb.AddChallenge("web", name), ErrInvalidName, "name %q", name)
		}
	})
}

func TestMarkSolved(t *testing.T) {
	sb := newTestBoard(t, ModeJeopardy, "web")
	require.NoError(t, sb.AddChallenge("web", "baby-web"))

	require.NoError(t, sb.MarkSolved("web", "baby-web"))
	once := sb.Snapshot()
	require.NoError(t, sb.MarkSolved("web", "baby-web"))
	assert.Equal(t, once, sb.Snapshot())

	solved, err := sb.IsSolved("web", "baby-web")
	require.NoError(t, err)
	assert.True(t, solved)

	assert.ErrorIs(t, sb.MarkSolved("web", "nope"), ErrUnknownChallenge)
}

func TestAssignUnassign(t *testing.T) {
	sb := newTestBoard(t, ModeJeopardy, "web")
	require.NoError(t, sb.AddChallenge("web", "baby-web"))

	require.NoError(t, sb.Assign("web", "baby-web", "bob"))
	require.NoError(t, sb.Assign("web", "baby-web", "alice"))
	require.NoError(t, sb.Assign("web", "baby-web", "bob"))
	assert.Equal(t, []string{"alice", "bob"}, sb.Snapshot().Categories[0].Challenges[0].Assigned)

	require.NoError(t, sb.Unassign("web", "baby-web", "bob"))
	require.NoError(t, sb.Unassign("web", "baby-web", "nobody"))
	assert.Equal(t, []string{"alice"}, sb.Snapshot().Categories[0].Challenges[0].Assigned)

	t.Run("unknown category", func(t *testing.T) {
		assert.ErrorIs(t, sb.Assign("nosuchcat", "x", "p"), ErrUnknownCategory)
	})
	t.Run("unknown challenge", func(t *testing.T) {
		assert.ErrorIs(t, sb.Unassign("web", "x", "p"), ErrUnknownChallenge)
	})
	t.Run("rejects players the status column cannot carry", func(t *testing.T) {
		for _, player := range []string{"a,b", "alice, bob", "❌", "✅bob", "bob ✅", "x❌y", " bob", "a|b", "-dash"} {
			assert.ErrorIs(t, sb.Assign("web", "baby-web", player), ErrInvalidName, "player %q", player)
		}
		assert.Equal(t, []string{"alice"}, sb.Snapshot().Categories[0].Challenges[0].Assigned)
	})

	t.Run("accepts lookalike names", func(t *testing.T) {
		for _, player := range []string{"✓-carol", "bob✓", "dave-", "ève"} {
			require.NoError(t, sb.Assign("web", "baby-web", player), "player %q", player)
		}
	})
}

func TestVulns(t *testing.T) {
	sb := newTestBoard(t, ModeAttackDefense, "cat")
	require.NoError(t, sb.AddChallenge("cat", "chal"))

	t.Run("unknown vuln", func(t *testing.T) {
		assert.ErrorIs(t, sb.MarkVulnPatched("cat", "chal", "nosuch"), ErrUnknownVuln)
		assert.ErrorIs(t, sb.MarkVulnExploited("cat", "chal", "nosuch"), ErrUnknownVuln)
	})

	t.Run("add on unknown challenge", func(t *testing.T) {
		assert.ErrorIs(t, sb.AddVuln("cat", "other", "sqli"), ErrUnknownChallenge)
	})

	t.Run("duplicate add resets flags", func(t *testing.T) {
		require.NoError(t, sb.AddVuln("cat", "chal", "sqli"))
		require.NoError(t, sb.MarkVulnPatched("cat", "chal", "sqli"))
		require.NoError(t, sb.MarkVulnExploited("cat", "chal", "sqli"))
		require.NoError(t, sb.AddVuln("cat", "chal", "sqli"))

		vulns := sb.Snapshot().Categories[0].Challenges[0].Vulns
		require.Len(t, vulns, 1)
		assert.False(t, vulns[0].Patched)
		assert.False(t, vulns[0].Exploited)
	})

	t.Run("names in insertion order", func(t *testing.T) {
		require.NoError(t, sb.AddVuln("cat", "chal", "rce"))
		names, err := sb.VulnNames("cat", "chal")
		require.NoError(t, err)
		assert.Equal(t, []string{"sqli", "rce"}, names)
	})
}

func TestSeed(t *testing.T) {
	src := NewCompetition(ModeJeopardy, []string{"web", "misc"})
	web, _ := src.Category("web")
	ch := newChallenge("baby-web")
	ch.Assigned["alice"] = struct{}{}
	web.put(ch)
	misc, _ := src.Category("misc")
	misc.put(newChallenge("sanity"))

	sb := newTestBoard(t, ModeJeopardy, "web", "pwn")
	dropped := sb.Seed(src)

	assert.Equal(t, []string{"misc"}, dropped)
	snap := sb.Snapshot()
	require.Len(t, snap.Categories, 2)
	require.Len(t, snap.Categories[0].Challenges, 1)
	assert.Equal(t, []string{"alice"}, snap.Categories[0].Challenges[0].Assigned)

	// The seeded state is a copy.
	ch.Assigned["mallory"] = struct{}{}
	assert.Equal(t, []string{"alice"}, sb.Snapshot().Categories[0].Challenges[0].Assigned)
}

func TestClearAndRemove(t *testing.T) {
	sb := newTestBoard(t, ModeJeopardy, "web", "pwn")
	require.NoError(t, sb.AddChallenge("web", "a"))
	require.NoError(t, sb.AddChallenge("pwn", "b"))

	require.NoError(t, sb.RemoveChallenge("web", "a"))
	assert.ErrorIs(t, sb.RemoveChallenge("web", "a"), ErrUnknownChallenge)
	assert.Equal(t, 1, sb.Stats().Challenges)

	sb.Clear()
	assert.Equal(t, []string{"web", "pwn"}, sb.Categories())
	assert.Equal(t, 0, sb.Stats().Challenges)
}

func TestStats(t *testing.T) {
	sb := newTestBoard(t, ModeAttackDefense, "svc")
	require.NoError(t, sb.AddChallenge("svc", "auth"))
	require.NoError(t, sb.AddChallenge("svc", "shop"))
	require.NoError(t, sb.AddChallenge("svc", "chat"))
	require.NoError(t, sb.MarkSolved("svc", "auth"))
	require.NoError(t, sb.Assign("svc", "shop", "alice"))
	require.NoError(t, sb.AddVuln("svc", "shop", "sqli"))
	require.NoError(t, sb.AddVuln("svc", "shop", "xss"))
	require.NoError(t, sb.MarkVulnPatched("svc", "shop", "sqli"))
	require.NoError(t, sb.MarkVulnExploited("svc", "shop", "xss"))

	assert.Equal(t, Stats{
		Challenges: 3,
		Solved:     1,
		Assigned:   1,
		Vulns:      2,
		Patched:    1,
		Exploited:  1,
	}, sb.Stats())
}

func TestConcurrentMutationAndRender(t *testing.T) {
	sb := newTestBoard(t, ModeJeopardy, "web")
	require.NoError(t, sb.AddChallenge("web", "baby-web"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = sb.Assign("web", "baby-web", "alice")
			_ = sb.Unassign("web", "baby-web", "alice")
		}()
		go func() {
			defer wg.Done()
			_ = sb.Render()
		}()
	}
	wg.Wait()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "Jeopardy", want: ModeJeopardy},
		{in: "AD", want: ModeAttackDefense},
		{in: "attack-defense", want: ModeAttackDefense},
		{in: "koth", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, got.Validate())
		})
	}
}
