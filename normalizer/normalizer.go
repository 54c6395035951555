// Package normalizer turns the escaped table markup returned by the journal
// profile service into newline separated "abbreviation;full name" records.
//
// The conversion is an ordered list of named steps. Order matters: later
// steps rely on the separators earlier steps introduce, so the chain is not
// idempotent and steps must not be reordered.
package normalizer

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Report collects what a chain run had to repair
type Report struct {
	DecodeErrors int
}

// Step is one named text transformation
type Step struct {
	Name      string
	Transform func(text string, report *Report) string
}

// Chain applies its steps in order
type Chain struct {
	steps []Step
}

// NewChain builds a chain from steps, in the order given
func NewChain(steps ...Step) *Chain {
	return &Chain{steps: append([]Step(nil), steps...)}
}

// Default returns the chain used for journal profile responses
func Default() *Chain {
	return NewChain(
		replace("row-boundary", ` *<\\?/td><\\?/tr><tr><td> *`, "\n"),
		// The semicolon becomes the column separator in the next step
		replace("protect-semicolons", `;`, ","),
		replace("cell-boundary", ` *<\\?/td><td> *`, ";"),
		replace("strip-tags", `<[^>]*>`, "\n"),
		replace("collapse-spaces", ` {2,}`, " "),
		replace("collapse-tabs", `\t{2,}`, "\t"),
		replace("trim-tabs", ` *\t *`, "\t"),
		replace("line-endings", ` *;*\t*\n\t*;* *`, "\n"),
		replace("collapse-newlines", `\n{2,}`, "\n"),
		Step{Name: "drop-quoted-lines", Transform: dropQuotedLines},
		literal("strip-escaped-tabs", `\t`, ""),
		literal("unescape-slashes", `\/`, "/"),
		literal("strip-escaped-backslashes", `\\`, ""),
		Step{Name: "decode-unicode-escapes", Transform: decodeEscapes},
	)
}

// Steps returns the step names in execution order
func (c *Chain) Steps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return names
}

// Step returns the named step
func (c *Chain) Step(name string) (Step, bool) {
	for _, s := range c.steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// Apply runs every step over text
func (c *Chain) Apply(text string) (string, Report) {
	var report Report
	for _, s := range c.steps {
		text = s.Transform(text, &report)
	}
	return text, report
}

// WriteFile writes normalized text to path as UTF-8, replacing any previous content
func WriteFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write intermediate file %s: %w", path, err)
	}
	return nil
}

func replace(name, pattern, replacement string) Step {
	re := regexp.MustCompile(pattern)
	return Step{
		Name: name,
		Transform: func(text string, _ *Report) string {
			return re.ReplaceAllLiteralString(text, replacement)
		},
	}
}

func literal(name, old, replacement string) Step {
	return Step{
		Name: name,
		Transform: func(text string, _ *Report) string {
			return strings.ReplaceAll(text, old, replacement)
		},
	}
}

// dropQuotedLines removes whole lines containing a double quote. The
// surrounding lines keep their own line breaks.
func dropQuotedLines(text string, _ *Report) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.Contains(line, `"`) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
