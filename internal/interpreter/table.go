package interpreter

import (
	"sort"
	"strings"

	"ablevoice/internal/domain"
)

// Class orders rules. Lower classes are tried first.
type Class int

const (
	ClassHelp Class = iota
	ClassNavigation
	ClassAction
	ClassMode
)

func (c Class) String() string {
	switch c {
	case ClassHelp:
		return "help"
	case ClassNavigation:
		return "navigation"
	case ClassAction:
		return "action"
	case ClassMode:
		return "mode"
	default:
		return "unknown"
	}
}

// MatchKind selects how a phrase is compared with a command.
type MatchKind int

const (
	// MatchExact requires the whole command to equal the phrase.
	MatchExact MatchKind = iota
	// MatchContains matches the phrase anywhere on word boundaries.
	MatchContains
	// MatchPrefix matches commands starting with the phrase followed by a
	// non-empty remainder.
	MatchPrefix
)

// Match is what a rule saw when it matched.
type Match struct {
	Command string
	Phrase  string
	Rest    string
}

// Handler performs a matched rule. A returned error is reported to the user
// as an interpretation failure.
type Handler func(in *Interpreter, m Match) (domain.Outcome, error)

// Rule is one row of the command table.
type Rule struct {
	Name    string
	Class   Class
	Kind    MatchKind
	Phrases []string
	Handle  Handler
}

// Table is an ordered command table. Rules are tried by class, then in the
// order they were added; the first match wins.
type Table struct {
	rules []Rule
}

// NewTable orders rules by class. The order within a class is preserved.
func NewTable(rules ...Rule) *Table {
	ordered := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Handle == nil || len(rule.Phrases) == 0 {
			continue
		}
		phrases := make([]string, 0, len(rule.Phrases))
		for _, phrase := range rule.Phrases {
			if normalized := Normalize(phrase); normalized != "" {
				phrases = append(phrases, normalized)
			}
		}
		rule.Phrases = phrases
		ordered = append(ordered, rule)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Class < ordered[j].Class
	})
	return &Table{rules: ordered}
}

// Rules returns the table in match order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Match finds the first rule accepting command, which must be normalized.
func (t *Table) Match(command string) (Rule, Match, bool) {
	for _, rule := range t.rules {
		for _, phrase := range rule.Phrases {
			if m, ok := matchPhrase(rule.Kind, command, phrase); ok {
				return rule, m, true
			}
		}
	}
	return Rule{}, Match{}, false
}

func matchPhrase(kind MatchKind, command, phrase string) (Match, bool) {
	m := Match{Command: command, Phrase: phrase}
	switch kind {
	case MatchExact:
		return m, command == phrase
	case MatchContains:
		padded := " " + command + " "
		return m, strings.Contains(padded, " "+phrase+" ")
	case MatchPrefix:
		rest, ok := strings.CutPrefix(command, phrase+" ")
		if !ok {
			return m, false
		}
		m.Rest = strings.TrimSpace(rest)
		return m, m.Rest != ""
	default:
		return m, false
	}
}
