package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"

	"github.com/wippyai/puzzle-host/catalog"
	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/internal/fixture"
	"github.com/wippyai/puzzle-host/runtime"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "stdin", "table", "examples", "list", "interactive"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			if err != nil || sub.Name() != name {
				t.Fatalf("command %s not found: %v", name, err)
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"module", "m", "aoc.wasm"},
		{"config", "c", ""},
		{"inputs", "", ""},
		{"threads", "t", "0"},
		{"timeout", "", "0s"},
		{"verbose", "v", "false"},
	}
	for _, tt := range tests {
		f := cmd.PersistentFlags().Lookup(tt.name)
		if f == nil {
			t.Errorf("flag --%s missing", tt.name)
			continue
		}
		if f.Shorthand != tt.shorthand || f.DefValue != tt.def {
			t.Errorf("--%s: shorthand %q default %q", tt.name, f.Shorthand, f.DefValue)
		}
	}
}

func TestTrimNewline(t *testing.T) {
	tests := map[string]string{
		"abc\n":   "abc",
		"abc\r\n": "abc",
		"abc\n\n": "abc\n",
		"abc":     "abc",
		"":        "",
	}
	for in, want := range tests {
		if got := trimNewline(in); got != want {
			t.Errorf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInputPath(t *testing.T) {
	got := inputPath("inputs", catalog.Key{Category: 2024, Item: 3})
	if want := filepath.Join("inputs", "year2024", "day03.txt"); got != want {
		t.Errorf("inputPath = %q, want %q", got, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Nanosecond, "  1.500 µs"},
		{12 * time.Millisecond, " 12.000 ms"},
		{2500 * time.Millisecond, "   2500 ms"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFilterKeys(t *testing.T) {
	keys := []catalog.Key{{Category: 2023, Item: 1}, {Category: 2024, Item: 1}, {Category: 2024, Item: 2}}
	tests := []struct {
		args []string
		want int
	}{
		{nil, 3},
		{[]string{"2024"}, 2},
		{[]string{"2024", "2"}, 1},
		{[]string{"2022"}, 0},
	}
	for _, tt := range tests {
		got, err := filterKeys(keys, tt.args)
		if err != nil {
			t.Fatalf("filterKeys(%v): %v", tt.args, err)
		}
		if len(got) != tt.want {
			t.Errorf("filterKeys(%v) = %v", tt.args, got)
		}
	}
	for _, bad := range [][]string{{"x"}, {"2024", "0"}, {"2024", "300"}} {
		if _, err := filterKeys(keys, bad); err == nil {
			t.Errorf("filterKeys(%v) should fail", bad)
		}
	}
}

func TestPartsFlag(t *testing.T) {
	tests := map[string]runtime.Selector{
		"both": runtime.BothParts,
		"":     runtime.BothParts,
		"1":    runtime.PartA,
		"B":    runtime.PartB,
	}
	for in, want := range tests {
		got, err := partsFlag(in)
		if err != nil || got != want {
			t.Errorf("partsFlag(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := partsFlag("3"); err == nil {
		t.Error("expected error for part 3")
	}
}

// workspace writes the single-threaded fixture and one input per
// catalogued puzzle.
func workspace(t *testing.T) (module, inputs string) {
	t.Helper()
	dir := t.TempDir()
	module = filepath.Join(dir, "aoc.wasm")
	if err := os.WriteFile(module, fixture.SingleThreaded(fixture.Options{}), 0o644); err != nil {
		t.Fatal(err)
	}
	inputs = filepath.Join(dir, "inputs")
	files := map[string]string{
		"day01.txt": fixture.ExampleInput + "\n",
		"day02.txt": "abcd\n",
	}
	if err := os.MkdirAll(filepath.Join(inputs, "year2024"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(inputs, "year2024", name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return module, inputs
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	module, inputs := workspace(t)

	out, err := execute(t, "", "-m", module, "--inputs", inputs, "run", "2024/1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Part 1: "+fixture.ExampleInput+"\n") || !strings.Contains(out, "Part 2: 35\n") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "", "-m", module, "--inputs", inputs, "run", "--part", "2", "2024/2")
	if err != nil {
		t.Fatalf("run part 2: %v", err)
	}
	if strings.Contains(out, "Part 1") || !strings.Contains(out, "Part 2: 4\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunCommandErrors(t *testing.T) {
	module, inputs := workspace(t)
	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"not catalogued", []string{"run", "2023/1"}, "not supported"},
		{"missing input", []string{"--inputs", t.TempDir(), "run", "2024/1"}, "failed to read"},
		{"bad key", []string{"run", "2024"}, "not <year>/<day>"},
		{"missing module", []string{"-m", filepath.Join(t.TempDir(), "none.wasm"), "run", "2024/1"}, "none.wasm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-m", module, "--inputs", inputs}, tt.args...)
			_, err := execute(t, "", args...)
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error containing %q, got %v", tt.contains, err)
			}
		})
	}
}

func TestStdinCommand(t *testing.T) {
	module, _ := workspace(t)
	tests := []struct {
		stdin string
		want  string
	}{
		{"hello", "hello\n5\n"},
		{"hello\n", "hello\n\n6\n"},
		{"a\r\nb\r\n", "a\r\nb\r\n\n6\n"},
	}
	for _, tt := range tests {
		out, err := execute(t, tt.stdin, "-m", module, "stdin", "2024/2")
		if err != nil {
			t.Fatalf("stdin %q: %v", tt.stdin, err)
		}
		if out != tt.want {
			t.Errorf("stdin %q: output = %q, want %q", tt.stdin, out, tt.want)
		}
	}
}

func TestStdinCommandReported(t *testing.T) {
	// without a catalog every key reaches the module
	module := filepath.Join(t.TempDir(), "bare.wasm")
	if err := os.WriteFile(module, fixture.SingleThreaded(fixture.Options{Catalog: catalog.New()}), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "x", "-m", module, "stdin", "2023/1")
	if !errors.IsKind(err, errors.KindReported) {
		t.Errorf("expected reported error, got %v", err)
	}
}

func TestTableCommand(t *testing.T) {
	module, inputs := workspace(t)
	out, err := execute(t, "", "-m", module, "--inputs", inputs, "table")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	for _, s := range []string{"Puzzle", "2024 01", "2024 02", " 4 "} {
		if !strings.Contains(out, s) {
			t.Errorf("table output missing %q:\n%s", s, out)
		}
	}

	if _, err := execute(t, "", "-m", module, "--inputs", inputs, "table", "2019"); err == nil {
		t.Error("expected error when no puzzle matches")
	}
}

func TestExamplesCommand(t *testing.T) {
	module, _ := workspace(t)
	out, err := execute(t, "", "-m", module, "examples", "2024")
	if err != nil {
		t.Fatalf("examples: %v", err)
	}
	if !strings.Contains(out, "2024/01 example 1:") || !strings.Contains(out, "part 2 = 35") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "2024/02") {
		t.Errorf("puzzle without examples listed:\n%s", out)
	}
}

func TestExamplesCommandSkipsPartless(t *testing.T) {
	cat := catalog.New()
	cat.Add(fixture.Year, 1,
		catalog.Example{Input: "unused"},
		catalog.Example{Input: "ab", PartB: true},
	)
	module := filepath.Join(t.TempDir(), "aoc.wasm")
	if err := os.WriteFile(module, fixture.SingleThreaded(fixture.Options{Catalog: cat}), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "-m", module, "examples")
	if err != nil {
		t.Fatalf("examples: %v", err)
	}
	if strings.Contains(out, "example 1") {
		t.Errorf("example without parts was run:\n%s", out)
	}
	if !strings.Contains(out, "2024/01 example 2: part 2 = 2\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFirstExample(t *testing.T) {
	if _, ok := firstExample(nil); ok {
		t.Error("no examples must not yield one")
	}
	if _, ok := firstExample([]catalog.Example{{Input: "x"}}); ok {
		t.Error("an example without parts must be skipped")
	}
	ex, ok := firstExample([]catalog.Example{{Input: "x"}, {Input: "y", PartA: true}, {Input: "z", PartB: true}})
	if !ok || ex.Input != "y" {
		t.Errorf("firstExample = %+v, %v", ex, ok)
	}
	if got := exampleParts(catalog.Example{PartA: true, PartB: true}); got != runtime.BothParts {
		t.Errorf("exampleParts = %v", got)
	}
}

func TestListCommand(t *testing.T) {
	module, _ := workspace(t)
	out, err := execute(t, "", "-m", module, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, s := range []string{"aoc.wasm (single-threaded, 2 puzzles)", "2024/01  1 example(s)", "  2024/02\n"} {
		if !strings.Contains(out, s) {
			t.Errorf("list output missing %q:\n%s", s, out)
		}
	}
}

func TestConfigFileThreads(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "mt.wasm")
	if err := os.WriteFile(module, fixture.MultiThreaded(fixture.Options{}), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "host.yaml")
	doc := "workers: 2\nbuffer_capacity: 4096\nstop_timeout: 5s\n"
	if err := os.WriteFile(cfg, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "a\nb\nc\n", "-m", module, "-c", cfg, "--threads", "3", "stdin", "2024/1")
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	if out != "6\n4\n" {
		t.Errorf("output = %q", out)
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.Reported("unsupported puzzle"), "Failed: unsupported puzzle"},
		{errors.Fatal("index out of bounds", "src/day99.rs:7:5", nil), "Crashed: index out of bounds\n  at src/day99.rs:7:5"},
		{errors.Busy("submit"), "Error: [runtime] busy: submit already in progress"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); got != tt.want {
			t.Errorf("describeError = %q, want %q", got, tt.want)
		}
	}
}

func TestPuzzleItem(t *testing.T) {
	item := puzzleItem{
		key:      catalog.Key{Category: 2024, Item: 1},
		examples: []catalog.Example{{Input: "x", PartA: true}},
		hasInput: true,
	}
	if item.Title() != "2024/01" || item.FilterValue() != "2024/01" {
		t.Errorf("title %q", item.Title())
	}
	if got := item.Description(); got != "input file, 1 example(s)" {
		t.Errorf("description %q", got)
	}
	if got := (puzzleItem{}).Description(); got != "no input" {
		t.Errorf("empty description %q", got)
	}
}

func TestInteractiveNavigation(t *testing.T) {
	m := newInteractiveModel(context.Background(), &RootOptions{})
	item := puzzleItem{key: catalog.Key{Category: 2024, Item: 1}, input: "abc", hasInput: true}
	m.Update(loadedMsg{sess: &session{}, items: []list.Item{item}})
	if !m.loaded {
		t.Fatal("model not loaded")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateEditInput || m.input.Value() != "abc" {
		t.Fatalf("state %d, input %q", m.state, m.input.Value())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != stateSelectPuzzle {
		t.Errorf("esc: state %d", m.state)
	}

	// the item has no example that applies to a part
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if m.state != stateSelectPuzzle {
		t.Errorf("x without examples: state %d", m.state)
	}

	m.Update(solvedMsg{res: runtime.Result{PartA: "1", PartB: "2"}})
	if m.state != stateShowResult || !strings.Contains(m.View(), "Part 2: 2") {
		t.Errorf("result view:\n%s", m.View())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateSelectPuzzle {
		t.Errorf("enter after result: state %d", m.state)
	}
}
