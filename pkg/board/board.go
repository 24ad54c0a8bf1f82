package board

import (
	"fmt"
	"sync"
)

// StatusBoard owns the live Competition. All methods are safe for concurrent
// use; a single mutex serialises mutations and renders.
type StatusBoard struct {
	mu   sync.Mutex
	comp *Competition
}

// New returns a board holding an empty Jeopardy competition with no categories.
// Call Reset before use.
func New() *StatusBoard {
	return &StatusBoard{comp: NewCompetition(ModeJeopardy, nil)}
}

// Reset replaces the whole competition with an empty one.
func (sb *StatusBoard) Reset(mode Mode, categories []string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.comp = NewCompetition(mode, categories)
}

// Seed copies the challenges of a parsed competition into the current one.
// Categories the current competition does not have are skipped and returned.
func (sb *StatusBoard) Seed(src *Competition) []string {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	var dropped []string
	for _, srcCat := range src.Categories() {
		cat, ok := sb.comp.Category(srcCat.Name)
		if !ok {
			dropped = append(dropped, srcCat.Name)
			continue
		}
		for _, ch := range srcCat.Challenges() {
			cat.put(ch.clone())
		}
	}
	return dropped
}

// Clear empties every category but keeps the mode and category list.
func (sb *StatusBoard) Clear() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	names := make([]string, 0)
	for _, cat := range sb.comp.Categories() {
		names = append(names, cat.Name)
	}
	started := sb.comp.StartedAt
	sb.comp = NewCompetition(sb.comp.Mode, names)
	sb.comp.StartedAt = started
}

// AddChallenge inserts a fresh, unsolved challenge.
// Adding an existing name replaces it.
func (sb *StatusBoard) AddChallenge(category, name string) error {
	if err := validateName("challenge", name); err != nil {
		return err
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()

	cat, ok := sb.comp.Category(category)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	cat.put(newChallenge(name))
	return nil
}

// RemoveChallenge drops a challenge from its category.
func (sb *StatusBoard) RemoveChallenge(category, name string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	cat, ok := sb.comp.Category(category)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if _, present := cat.challenges.Delete(name); !present {
		return fmt.Errorf("%w: %q in %q", ErrUnknownChallenge, name, category)
	}
	return nil
}

// MarkSolved flags a challenge as solved. Marking twice is a no-op.
func (sb *StatusBoard) MarkSolved(category, challenge string) error {
	return sb.withChallenge(category, challenge, func(ch *Challenge) error {
		ch.Solved = true
		return nil
	})
}

// Assign adds a player to the challenge's assigned set.
func (sb *StatusBoard) Assign(category, challenge, player string) error {
	return sb.withChallenge(category, challenge, func(ch *Challenge) error {
		if err := validatePlayer(player); err != nil {
			return err
		}
		ch.Assigned[player] = struct{}{}
		return nil
	})
}

// Unassign removes a player from the challenge's assigned set.
// Removing a player that is not assigned is a no-op.
func (sb *StatusBoard) Unassign(category, challenge, player string) error {
	return sb.withChallenge(category, challenge, func(ch *Challenge) error {
		delete(ch.Assigned, player)
		return nil
	})
}

// AddVuln records a vulnerability with both flags unset. An existing
// vulnerability of the same name is overwritten.
func (sb *StatusBoard) AddVuln(category, challenge, vuln string) error {
	return sb.withChallenge(category, challenge, func(ch *Challenge) error {
		if err := validateName("vulnerability", vuln); err != nil {
			return err
		}
		ch.vulns.Set(vuln, &Vulnerability{Name: vuln})
		return nil
	})
}

// MarkVulnPatched flags a vulnerability as patched.
func (sb *StatusBoard) MarkVulnPatched(category, challenge, vuln string) error {
	return sb.withVuln(category, challenge, vuln, func(v *Vulnerability) {
		v.Patched = true
	})
}

// MarkVulnExploited flags a vulnerability as exploited.
func (sb *StatusBoard) MarkVulnExploited(category, challenge, vuln string) error {
	return sb.withVuln(category, challenge, vuln, func(v *Vulnerability) {
		v.Exploited = true
	})
}

// Render produces the board text for the current state.
func (sb *StatusBoard) Render() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.comp.Render()
}

// Mode returns the competition mode.
func (sb *StatusBoard) Mode() Mode {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.comp.Mode
}

// Categories returns the category names in display order.
func (sb *StatusBoard) Categories() []string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	var names []string
	for _, cat := range sb.comp.Categories() {
		names = append(names, cat.Name)
	}
	return names
}

// HasCategory reports whether the category is part of the competition.
func (sb *StatusBoard) HasCategory(category string) bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	_, ok := sb.comp.Category(category)
	return ok
}

// IsSolved reports the solved flag of a challenge.
func (sb *StatusBoard) IsSolved(category, challenge string) (bool, error) {
	var solved bool
	err := sb.withChallenge(category, challenge, func(ch *Challenge) error {
		solved = ch.Solved
		return nil
	})
	return solved, err
}

// VulnNames lists the vulnerabilities of a challenge in insertion order.
func (sb *StatusBoard) VulnNames(category, challenge string) ([]string, error) {
	var names []string
	err := sb.withChallenge(category, challenge, func(ch *Challenge) error {
		for _, v := range ch.Vulns() {
			names = append(names, v.Name)
		}
		return nil
	})
	return names, err
}

// Snapshot returns a plain copy of the current state.
func (sb *StatusBoard) Snapshot() Snapshot {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.comp.Snapshot()
}

// Stats summarises the current state.
func (sb *StatusBoard) Stats() Stats {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.comp.Stats()
}

func (sb *StatusBoard) withChallenge(category, challenge string, fn func(*Challenge) error) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	cat, ok := sb.comp.Category(category)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	ch, ok := cat.Challenge(challenge)
	if !ok {
		return fmt.Errorf("%w: %q in %q", ErrUnknownChallenge, challenge, category)
	}
	return fn(ch)
}

func (sb *StatusBoard) withVuln(category, challenge, vuln string, fn func(*Vulnerability)) error {
	return sb.withChallenge(category, challenge, func(ch *Challenge) error {
		v, ok := ch.Vuln(vuln)
		if !ok {
			return fmt.Errorf("%w: %q on %q", ErrUnknownVuln, vuln, challenge)
		}
		fn(v)
		return nil
	})
}
