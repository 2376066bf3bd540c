// Package rules rewrites misheard command phrases before they are matched.
//
// A rules file holds one alias per line:
//
//	parotta => porotta
//	s/\bcard\b/cart/g
//
// Blank lines and lines starting with # are ignored.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// RuleParser parses one line into a compiled rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (compiledRule, error)
}

// Engine applies alias rules until the command stops changing.
type Engine struct {
	rules     []compiledRule
	loopLimit int
}

// NewEngine loads aliases from path on the OS filesystem.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	return NewEngineFromFS(afero.NewOsFs(), path, loopLimit)
}

// NewEngineFromFS loads aliases from path on fs. A missing file yields an
// engine with no rules.
func NewEngineFromFS(fs afero.Fs, path string, loopLimit int) (*Engine, error) {
	return NewEngineWithParsers(fs, path, loopLimit, defaultRuleParsers())
}

// NewEngineWithParsers allows parser extension without engine changes.
func NewEngineWithParsers(fs afero.Fs, path string, loopLimit int, parsers []RuleParser) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}
	if len(parsers) == 0 {
		parsers = defaultRuleParsers()
	}

	if strings.TrimSpace(path) == "" {
		return &Engine{loopLimit: loopLimit}, nil
	}

	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Engine{loopLimit: loopLimit}, nil
		}
		return nil, fmt.Errorf("failed to read aliases file %q: %w", path, err)
	}

	rules, err := parseRules(string(contents), parsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse aliases file %q: %w", path, err)
	}

	return &Engine{rules: rules, loopLimit: loopLimit}, nil
}

// Len is the number of loaded rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply rewrites text. Rules are re-applied until nothing changes or the
// loop limit is reached, so an alias chain a => b, b => c resolves to c.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, rule := range e.rules {
			next, ruleChanged := rule.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}

	return result, fmt.Errorf("aliases did not settle after %d passes", e.loopLimit)
}

func parseRules(contents string, parsers []RuleParser) ([]compiledRule, error) {
	lines := strings.Split(contents, "\n")
	rules := make([]compiledRule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rule compiledRule
		for _, parser := range parsers {
			if !parser.CanParse(line) {
				continue
			}
			parsed, err := parser.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			rule = parsed
			break
		}
		if rule == nil {
			return nil, fmt.Errorf("line %d: unsupported alias format", index+1)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func defaultRuleParsers() []RuleParser {
	return []RuleParser{regexRuleParser{}, aliasRuleParser{}}
}

type aliasRuleParser struct{}

func (aliasRuleParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (aliasRuleParser) Parse(line string) (compiledRule, error) {
	return parseAliasRule(line)
}

type regexRuleParser struct{}

func (regexRuleParser) CanParse(line string) bool {
	return looksLikeRegexRule(line)
}

func (regexRuleParser) Parse(line string) (compiledRule, error) {
	return parseRegexRule(line)
}

// aliasRule replaces whole-word occurrences of a phrase. The replacement is
// lowercased because commands are matched in normalized form.
type aliasRule struct {
	replacement string
	re          *regexp.Regexp
}

func parseAliasRule(line string) (compiledRule, error) {
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid alias rule")
	}
	from = strings.Join(strings.Fields(from), " ")
	to = strings.ToLower(strings.Join(strings.Fields(to), " "))
	if from == "" {
		return nil, errors.New("alias source cannot be empty")
	}

	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("invalid alias source: %w", err)
	}

	return aliasRule{replacement: to, re: re}, nil
}

func (r aliasRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseRegexRule(line string) (compiledRule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isAlphaNumericOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	// commands are already lowercase, so matching is always case-insensitive
	prefix := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i', ' ':
		case 'g':
			global = true
		case 's':
			prefix += "s"
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + prefix + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}

	return regexRule{re: re, replacement: strings.ToLower(replacement), global: global}, nil
}

func (r regexRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringIndex(input)
	if loc == nil {
		return input, false
	}

	replaced := r.re.ReplaceAllString(input[loc[0]:loc[1]], r.replacement)
	output := input[:loc[0]] + replaced + input[loc[1]:]
	return output, output != input
}

func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		if escaped {
			builder.WriteByte(char)
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			builder.WriteByte(char)
			continue
		}
		if char == delim {
			return builder.String(), index + 1, nil
		}
		builder.WriteByte(char)
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}

func looksLikeRegexRule(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}
