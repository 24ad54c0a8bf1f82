package board

import (
	"fmt"
	"sort"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Mode is the competition format.
type Mode string

const (
	// ModeJeopardy is the classic independent-challenge format.
	ModeJeopardy Mode = "Jeopardy"

	// ModeAttackDefense tracks per-challenge vulnerabilities for patching and exploiting.
	ModeAttackDefense Mode = "AD"
)

// Validate checks if the Mode is a valid enum value.
func (m Mode) Validate() error {
	switch m {
	case ModeJeopardy, ModeAttackDefense:
		return nil
	default:
		return fmt.Errorf("unknown mode: %q", m)
	}
}

// ParseMode accepts the mode names used by operators ("Jeopardy", "AD",
// "attack-defense"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jeopardy", "j":
		return ModeJeopardy, nil
	case "ad", "attackdefense", "attack-defense":
		return ModeAttackDefense, nil
	default:
		return "", fmt.Errorf("unknown mode: %q (expected Jeopardy or AD)", s)
	}
}

// Competition is the full state of one active CTF run.
// Category order is fixed at Reset time and is the display order.
type Competition struct {
	Mode       Mode
	StartedAt  time.Time
	categories *orderedmap.OrderedMap[string, *Category]
}

// Category groups challenges. Challenge insertion order is the display order.
type Category struct {
	Name       string
	challenges *orderedmap.OrderedMap[string, *Challenge]
}

// Challenge is a single task within a category.
type Challenge struct {
	Name     string
	Solved   bool
	Assigned map[string]struct{}
	vulns    *orderedmap.OrderedMap[string, *Vulnerability]
}

// Vulnerability is a weakness in an Attack-Defense service.
type Vulnerability struct {
	Name      string `json:"name"`
	Patched   bool   `json:"patched"`
	Exploited bool   `json:"exploited"`
}

// NewCompetition returns an empty competition with the given categories, in order.
// Duplicate category names collapse into the first occurrence.
func NewCompetition(mode Mode, categories []string) *Competition {
	c := &Competition{
		Mode:       mode,
		StartedAt:  time.Now(),
		categories: orderedmap.New[string, *Category](),
	}
	for _, name := range categories {
		c.addCategory(name)
	}
	return c
}

func (c *Competition) addCategory(name string) *Category {
	if cat, ok := c.categories.Get(name); ok {
		return cat
	}
	cat := &Category{
		Name:       name,
		challenges: orderedmap.New[string, *Challenge](),
	}
	c.categories.Set(name, cat)
	return cat
}

// Category returns the named category.
func (c *Competition) Category(name string) (*Category, bool) {
	return c.categories.Get(name)
}

// Categories returns the categories in display order.
func (c *Competition) Categories() []*Category {
	out := make([]*Category, 0, c.categories.Len())
	for pair := c.categories.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Challenge returns the named challenge.
func (cat *Category) Challenge(name string) (*Challenge, bool) {
	return cat.challenges.Get(name)
}

// Challenges returns the challenges in display order.
func (cat *Category) Challenges() []*Challenge {
	out := make([]*Challenge, 0, cat.challenges.Len())
	for pair := cat.challenges.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// put inserts or replaces a challenge. Replacing keeps the original position.
func (cat *Category) put(ch *Challenge) {
	cat.challenges.Set(ch.Name, ch)
}

func newChallenge(name string) *Challenge {
	return &Challenge{
		Name:     name,
		Assigned: make(map[string]struct{}),
		vulns:    orderedmap.New[string, *Vulnerability](),
	}
}

// Vuln returns the named vulnerability.
func (ch *Challenge) Vuln(name string) (*Vulnerability, bool) {
	return ch.vulns.Get(name)
}

// Vulns returns the vulnerabilities in insertion order.
func (ch *Challenge) Vulns() []*Vulnerability {
	out := make([]*Vulnerability, 0, ch.vulns.Len())
	for pair := ch.vulns.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// AssignedPlayers returns the assigned set sorted lexically.
func (ch *Challenge) AssignedPlayers() []string {
	out := make([]string, 0, len(ch.Assigned))
	for p := range ch.Assigned {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (ch *Challenge) clone() *Challenge {
	cp := newChallenge(ch.Name)
	cp.Solved = ch.Solved
	for p := range ch.Assigned {
		cp.Assigned[p] = struct{}{}
	}
	for _, v := range ch.Vulns() {
		vv := *v
		cp.vulns.Set(vv.Name, &vv)
	}
	return cp
}

// Snapshot is a plain copy of a Competition, safe to hand to other goroutines.
type Snapshot struct {
	Mode       Mode               `json:"mode"`
	StartedAt  time.Time          `json:"started_at"`
	Categories []CategorySnapshot `json:"categories"`
}

// CategorySnapshot is the plain form of a Category.
type CategorySnapshot struct {
	Name       string              `json:"name"`
	Challenges []ChallengeSnapshot `json:"challenges"`
}

// ChallengeSnapshot is the plain form of a Challenge. Assigned is sorted.
type ChallengeSnapshot struct {
	Name     string          `json:"name"`
	Solved   bool            `json:"solved"`
	Assigned []string        `json:"assigned"`
	Vulns    []Vulnerability `json:"vulns"`
}

// Snapshot copies the competition into plain values.
func (c *Competition) Snapshot() Snapshot {
	s := Snapshot{Mode: c.Mode, StartedAt: c.StartedAt, Categories: []CategorySnapshot{}}
	for _, cat := range c.Categories() {
		cs := CategorySnapshot{Name: cat.Name, Challenges: []ChallengeSnapshot{}}
		for _, ch := range cat.Challenges() {
			chs := ChallengeSnapshot{
				Name:     ch.Name,
				Solved:   ch.Solved,
				Assigned: ch.AssignedPlayers(),
				Vulns:    []Vulnerability{},
			}
			for _, v := range ch.Vulns() {
				chs.Vulns = append(chs.Vulns, *v)
			}
			cs.Challenges = append(cs.Challenges, chs)
		}
		s.Categories = append(s.Categories, cs)
	}
	return s
}

// Stats summarises board progress.
type Stats struct {
	Challenges int
	Solved     int
	Assigned   int
	Vulns      int
	Patched    int
	Exploited  int
}

// Stats counts challenges and vulnerabilities across all categories.
func (c *Competition) Stats() Stats {
	var st Stats
	for _, cat := range c.Categories() {
		for _, ch := range cat.Challenges() {
			st.Challenges++
			switch {
			case ch.Solved:
				st.Solved++
			case len(ch.Assigned) > 0:
				st.Assigned++
			}
			for _, v := range ch.Vulns() {
				st.Vulns++
				if v.Patched {
					st.Patched++
				}
				if v.Exploited {
					st.Exploited++
				}
			}
		}
	}
	return st
}
