package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/puzzle-host/catalog"
	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// NewInteractiveCommand creates the interactive command.
func NewInteractiveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "interactive",
		Aliases:       []string{"i"},
		Short:         "Browse and solve puzzles in a terminal UI",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts)
		},
	}
}

type puzzleItem struct {
	key      catalog.Key
	examples []catalog.Example
	input    string
	hasInput bool
}

func (p puzzleItem) Title() string       { return p.key.String() }
func (p puzzleItem) FilterValue() string { return p.key.String() }

func (p puzzleItem) Description() string {
	var parts []string
	if p.hasInput {
		parts = append(parts, "input file")
	}
	if n := len(p.examples); n > 0 {
		parts = append(parts, fmt.Sprintf("%d example(s)", n))
	}
	if len(parts) == 0 {
		return "no input"
	}
	return strings.Join(parts, ", ")
}

type modelState int

const (
	stateSelectPuzzle modelState = iota
	stateEditInput
	stateRunning
	stateShowResult
)

type interactiveModel struct {
	err     error
	ctx     context.Context
	opts    *RootOptions
	sess    *session
	list    list.Model
	input   textarea.Model
	spinner spinner.Model
	result  runtime.Result
	current puzzleItem
	example bool
	state   modelState
	loaded  bool
}

func newInteractiveModel(ctx context.Context, opts *RootOptions) *interactiveModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Puzzles"

	ta := textarea.New()
	ta.Placeholder = "puzzle input"
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &interactiveModel{
		ctx:     ctx,
		opts:    opts,
		list:    l,
		input:   ta,
		spinner: sp,
		state:   stateSelectPuzzle,
	}
}

type loadedMsg struct {
	err   error
	sess  *session
	items []list.Item
}

type solvedMsg struct {
	err error
	res runtime.Result
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.load, m.spinner.Tick)
}

func (m *interactiveModel) load() tea.Msg {
	sess, err := openSession(m.opts)
	if err != nil {
		return loadedMsg{err: err}
	}
	cat := sess.sup.Catalog()
	var items []list.Item
	for _, key := range cat.Keys() {
		item := puzzleItem{key: key, examples: cat.Examples(key.Category, key.Item)}
		if input, err := readInput(sess.inputs, key); err == nil {
			item.input, item.hasInput = input, true
		}
		items = append(items, item)
	}
	return loadedMsg{sess: sess, items: items}
}

func (m *interactiveModel) solve(req runtime.Request) tea.Cmd {
	sess := m.sess
	ctx := m.ctx
	return func() tea.Msg {
		res, err := sess.submit(ctx, req)
		return solvedMsg{res: res, err: err}
	}
}

func (m *interactiveModel) quit() (tea.Model, tea.Cmd) {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
	return m, tea.Quit
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
		m.input.SetWidth(msg.Width - 2)
		m.input.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		switch m.state {
		case stateSelectPuzzle:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "q":
				return m.quit()
			case "enter":
				item, ok := m.list.SelectedItem().(puzzleItem)
				if !ok {
					return m, nil
				}
				m.current = item
				m.input.SetValue(item.input)
				m.state = stateEditInput
				return m, m.input.Focus()
			case "x":
				item, ok := m.list.SelectedItem().(puzzleItem)
				if !ok {
					return m, nil
				}
				ex, ok := firstExample(item.examples)
				if !ok {
					return m, nil
				}
				m.current = item
				m.example = true
				req := request(item.key, ex.Input, exampleParts(ex))
				req.Example = true
				m.state = stateRunning
				return m, m.solve(req)
			}

		case stateEditInput:
			switch msg.String() {
			case "esc":
				m.input.Blur()
				m.state = stateSelectPuzzle
				return m, nil
			case "ctrl+r":
				m.input.Blur()
				m.example = false
				m.state = stateRunning
				return m, m.solve(request(m.current.key, m.input.Value(), runtime.BothParts))
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd

		case stateRunning:
			return m, nil

		case stateShowResult:
			switch msg.String() {
			case "q":
				return m.quit()
			case "enter", "esc":
				m.state = stateSelectPuzzle
				m.err = nil
				m.result = runtime.Result{}
			}
			return m, nil
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.loaded = true
		return m, m.list.SetItems(msg.items)

	case solvedMsg:
		m.result = msg.res
		m.err = msg.err
		m.state = stateShowResult
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state == stateSelectPuzzle && m.loaded {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// firstExample returns the first example that applies to at least one part.
func firstExample(examples []catalog.Example) (catalog.Example, bool) {
	for _, ex := range examples {
		if exampleParts(ex) != 0 {
			return ex, true
		}
	}
	return catalog.Example{}, false
}

func exampleParts(ex catalog.Example) runtime.Selector {
	var parts runtime.Selector
	if ex.PartA {
		parts |= runtime.PartA
	}
	if ex.PartB {
		parts |= runtime.PartB
	}
	return parts
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if !m.loaded {
		return m.spinner.View() + " Loading module..."
	}

	var b strings.Builder
	switch m.state {
	case stateSelectPuzzle:
		b.WriteString(m.list.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter edit input • x run example • / filter • q quit"))

	case stateEditInput:
		b.WriteString(titleStyle.Render("Input"))
		b.WriteString(" ")
		b.WriteString(keyStyle.Render(m.current.key.String()))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("ctrl+r run • esc back"))

	case stateRunning:
		b.WriteString(m.spinner.View())
		b.WriteString(" Solving ")
		b.WriteString(keyStyle.Render(m.current.key.String()))
		b.WriteString("...")

	case stateShowResult:
		b.WriteString(titleStyle.Render("Result"))
		b.WriteString(" ")
		b.WriteString(keyStyle.Render(m.current.key.String()))
		if m.example {
			b.WriteString(" (example)")
		}
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(describeError(m.err)))
		} else {
			b.WriteString(resultStyle.Render(fmt.Sprintf("Part 1: %s\nPart 2: %s", m.result.PartA, m.result.PartB)))
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("Time: " + strings.TrimSpace(formatDuration(m.result.Elapsed))))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}
	return b.String()
}

// describeError renders module failures without the phase and kind prefix.
func describeError(err error) string {
	if e, ok := errors.As(err, errors.KindReported); ok {
		return "Failed: " + e.Message()
	}
	if e, ok := errors.AsFatal(err); ok {
		msg := "Crashed: " + e.Message()
		if e.Location != "" {
			msg += "\n  at " + e.Location
		}
		return msg
	}
	return fmt.Sprintf("Error: %v", err)
}

func runInteractive(ctx context.Context, opts *RootOptions) error {
	if _, err := os.Stat(opts.Module); err != nil {
		return err
	}
	m := newInteractiveModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if m.sess != nil {
		m.sess.Close()
	}
	return err
}
