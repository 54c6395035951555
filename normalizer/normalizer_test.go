package normalizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func applyStep(t *testing.T, name, input string) (string, Report) {
	t.Helper()

	step, ok := Default().Step(name)
	if !ok {
		t.Fatalf("Step %q not found in default chain", name)
	}

	var report Report
	return step.Transform(input, &report), report
}

func TestDefaultStepOrder(t *testing.T) {
	expected := []string{
		"row-boundary",
		"protect-semicolons",
		"cell-boundary",
		"strip-tags",
		"collapse-spaces",
		"collapse-tabs",
		"trim-tabs",
		"line-endings",
		"collapse-newlines",
		"drop-quoted-lines",
		"strip-escaped-tabs",
		"unescape-slashes",
		"strip-escaped-backslashes",
		"decode-unicode-escapes",
	}

	got := Default().Steps()
	if len(got) != len(expected) {
		t.Fatalf("Expected %d steps, got %d: %v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Step %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		step     string
		input    string
		expected string
	}{
		{"row-boundary", `A.  <\/td><\/tr><tr><td>  B.`, "A.\nB."},
		{"row-boundary", "A. </td></tr><tr><td> B.", "A.\nB."},
		{"protect-semicolons", "Acta; Series A;", "Acta, Series A,"},
		{"cell-boundary", `J. Chem. <\/td><td> Journal of Chemistry`, "J. Chem.;Journal of Chemistry"},
		{"cell-boundary", "J. Chem.</td><td>Journal of Chemistry", "J. Chem.;Journal of Chemistry"},
		{"strip-tags", "<table><tr><td>A.;Full A\nB.;Full B<\\/td><\\/tr>", "\n\n\nA.;Full A\nB.;Full B\n\n"},
		{"strip-tags", "x <b>bold</b> y", "x \nbold\n y"},
		{"strip-tags", "<tr><td>A.;Full A<\\/td><\\/tr>", "\n\nA.;Full A\n\n"},
		{"collapse-spaces", "Journal   of    Physics", "Journal of Physics"},
		{"collapse-tabs", "A\t\t\tB", "A\tB"},
		{"trim-tabs", "A  \t  B", "A\tB"},
		{"line-endings", "A.;Full A ;\t\n\t; B.;Full B", "A.;Full A\nB.;Full B"},
		{"collapse-newlines", "A\n\n\nB\n\nC", "A\nB\nC"},
		{"drop-quoted-lines", "{\"html\":\"\nA.;Full A\nB.;Full B\n\"}", "A.;Full A\nB.;Full B"},
		{"drop-quoted-lines", "A.;Full A\nB.;\"Quoted\"\nC.;Full C", "A.;Full A\nC.;Full C"},
		{"strip-escaped-tabs", `Acta\tMath`, "ActaMath"},
		{"unescape-slashes", `Cell Biol\/Med`, "Cell Biol/Med"},
		{"strip-escaped-backslashes", `A\\B`, "AB"},
		{"decode-unicode-escapes", `Universit\u00e4t`, "Universität"},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			got, _ := applyStep(t, tt.step, tt.input)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestApplyTableRows(t *testing.T) {
	input := `{"html":"<table><tr><td>A.<\/td><td>Full A<\/td><\/tr><tr><td>B.<\/td><td>Full B<\/td><\/tr><\/table>"}`

	got, report := Default().Apply(input)

	if got != "A.;Full A\nB.;Full B" {
		t.Errorf("Expected two records, got %q", got)
	}
	if report.DecodeErrors != 0 {
		t.Errorf("Expected no decode errors, got %d", report.DecodeErrors)
	}
}

func TestApplySingleRow(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"escaped", `<tr><td>Abbrev.<\/td><td>Full Name<\/td><\/tr>`},
		{"unescaped", `<tr><td>Abbrev.</td><td>Full Name</td></tr>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Default().Apply(tt.input)

			if got != "\nAbbrev.;Full Name\n" {
				t.Errorf("Expected the line Abbrev.;Full Name, got %q", got)
			}
		})
	}
}

func TestApplyRepairsUnicodeEscapes(t *testing.T) {
	input := `{"html":"<table><tr><td>ACTA UNIV<\/td><td>Acta Universit\u00e4t Wien<\/td><\/tr>` +
		`<tr><td>J. Am. Chem. Soc.<\/td><td>Journal of the American Chemical Society<\/td><\/tr><\/table>"}`

	got, _ := Default().Apply(input)

	expected := "ACTA UNIV;Acta Universität Wien\nJ. Am. Chem. Soc.;Journal of the American Chemical Society"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestApplyProtectsContentSemicolons(t *testing.T) {
	input := `<tr><td>X<\/td><\/tr><tr><td>PHYS REV A<\/td><td>Physical Review A; Atomic Physics<\/td><\/tr><tr><td>Y`

	got, _ := Default().Apply(input)

	expected := "\nX\nPHYS REV A;Physical Review A, Atomic Physics\nY"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestApplyEmptyInput(t *testing.T) {
	got, report := Default().Apply("")
	if got != "" || report.DecodeErrors != 0 {
		t.Errorf("Expected empty output, got %q %+v", got, report)
	}
}

func TestNewChainCustomSteps(t *testing.T) {
	chain := NewChain(
		literal("upper-a", "a", "A"),
		replace("digits", `[0-9]+`, "#"),
	)

	got, _ := chain.Apply("a1b22")
	if got != "A#b#" {
		t.Errorf("Expected A#b#, got %q", got)
	}
	if _, ok := chain.Step("missing"); ok {
		t.Error("Expected missing step lookup to fail")
	}
}

func TestReplacementIsLiteral(t *testing.T) {
	got := replace("dollar", `x`, "$1").Transform("axb", &Report{})
	if got != "a$1b" {
		t.Errorf("Expected literal replacement, got %q", got)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.txt")

	if err := os.WriteFile(path, []byte("stale content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, "A.;Universität"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "A.;Universität" {
		t.Errorf("Expected file to be replaced, got %q", content)
	}
}

func TestWriteFileMissingDir(t *testing.T) {
	if err := WriteFile(filepath.Join(t.TempDir(), "nope", "result.txt"), "x"); err == nil {
		t.Error("Expected error writing into a missing directory")
	}
}

func BenchmarkApply(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(`{"html":"<table><tr><td>`)
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&sb, `J. Test %d<\/td><td>Journal of Test Universit\u00e4t %d<\/td><\/tr><tr><td>`, i, i)
	}
	sb.WriteString(`<\/td><\/tr><\/table>"}`)
	input := sb.String()
	chain := Default()

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chain.Apply(input)
	}
}
