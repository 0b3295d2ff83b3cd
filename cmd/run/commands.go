package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/puzzle-host/catalog"
	"github.com/wippyai/puzzle-host/runtime"
)

// partsFlag parses --part.
func partsFlag(s string) (runtime.Selector, error) {
	switch strings.ToLower(s) {
	case "", "both":
		return runtime.BothParts, nil
	case "1", "a":
		return runtime.PartA, nil
	case "2", "b":
		return runtime.PartB, nil
	default:
		return 0, fmt.Errorf("invalid part %q: must be 1, 2 or both", s)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var part string

	cmd := &cobra.Command{
		Use:   "run <year/day>",
		Short: "Solve one puzzle with its input file",
		Long: `Solve one puzzle. The input is read from <inputs>/year<YYYY>/day<DD>.txt
with one trailing newline removed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := catalog.ParseKey(args[0])
			if err != nil {
				return err
			}
			parts, err := partsFlag(part)
			if err != nil {
				return err
			}
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := checkCatalog(s, key); err != nil {
				return err
			}
			input, err := readInput(s.inputs, key)
			if err != nil {
				return err
			}
			res, err := s.submit(cmd.Context(), request(key, input, parts))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out := cmd.OutOrStdout()
			if parts&runtime.PartA != 0 {
				fmt.Fprintf(out, "Part 1: %s\n", res.PartA)
			}
			if parts&runtime.PartB != 0 {
				fmt.Fprintf(out, "Part 2: %s\n", res.PartB)
			}
			fmt.Fprintf(out, "Time:   %s\n", strings.TrimSpace(formatDuration(res.Elapsed)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&part, "part", "p", "both", "part to solve (1, 2 or both)")
	return cmd
}

// NewStdinCommand creates the stdin command.
func NewStdinCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stdin <year/day>",
		Short:         "Solve one puzzle reading its input from stdin",
		Long:          "Solve one puzzle reading its input from stdin and print both answers on separate lines.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := catalog.ParseKey(args[0])
			if err != nil {
				return err
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := checkCatalog(s, key); err != nil {
				return err
			}
			res, err := s.submit(cmd.Context(), request(key, string(data), runtime.BothParts))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.PartA)
			fmt.Fprintln(cmd.OutOrStdout(), res.PartB)
			return nil
		},
	}
}

const (
	partAWidth = 20
	partBWidth = 38
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	totalStyle  = lipgloss.NewStyle().Faint(true)
)

// NewTableCommand creates the table command.
func NewTableCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "table [year [day]]",
		Short: "Solve every catalogued puzzle and print a timing table",
		Long: `Solve every puzzle the module advertises, optionally limited to one year
or one day, reading each input from the inputs directory.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			keys, err := filterKeys(s.sup.Catalog().Keys(), args)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return fmt.Errorf("no supported puzzles match %v", args)
			}

			out := cmd.OutOrStdout()
			rule := strings.Repeat("─", 8) + "┼" + strings.Repeat("─", partAWidth+2) + "┼" +
				strings.Repeat("─", partBWidth+2) + "┼" + strings.Repeat("─", 11)
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-7s │ %-*s │ %-*s │ %s",
				"Puzzle", partAWidth, "Part 1", partBWidth, "Part 2", "Time")))
			fmt.Fprintln(out, rule)

			var total time.Duration
			for _, key := range keys {
				input, err := readInput(s.inputs, key)
				if err != nil {
					return err
				}
				res, err := s.submit(cmd.Context(), request(key, input, runtime.BothParts))
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				total += res.Elapsed
				fmt.Fprintf(out, "%04d %02d │ %-*s │ %-*s │ %s\n",
					key.Category, key.Item, partAWidth, res.PartA, partBWidth, res.PartB,
					formatDuration(res.Elapsed))
			}
			fmt.Fprintln(out, rule)
			fmt.Fprintln(out, totalStyle.Render(fmt.Sprintf("%*s │ %s",
				7+3+partAWidth+3+partBWidth+1, "", formatDuration(total))))
			return nil
		},
	}
}

// NewExamplesCommand creates the examples command.
func NewExamplesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "examples [year [day]]",
		Short: "Solve the examples embedded in the module",
		Long: `Solve every example the module embeds, for the parts each example
applies to. Examples that apply to neither part are skipped.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			cat := s.sup.Catalog()
			keys, err := filterKeys(cat.Keys(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var failed int
			for _, key := range keys {
				for i, ex := range cat.Examples(key.Category, key.Item) {
					parts := exampleParts(ex)
					if parts == 0 {
						continue
					}
					req := request(key, ex.Input, parts)
					req.Example = true
					res, err := s.submit(cmd.Context(), req)
					if err != nil {
						failed++
						fmt.Fprintf(out, "%s example %d: %v\n", key, i+1, err)
						continue
					}
					fmt.Fprintf(out, "%s example %d:", key, i+1)
					if ex.PartA {
						fmt.Fprintf(out, " part 1 = %s", res.PartA)
					}
					if ex.PartB {
						fmt.Fprintf(out, " part 2 = %s", res.PartB)
					}
					fmt.Fprintln(out)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d example(s) failed", failed)
			}
			return nil
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the puzzles the module supports",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			m := s.sup.Module()
			cat := s.sup.Catalog()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %d puzzles)\n", m.Name(), m.Policy(), cat.Len())
			for _, key := range cat.Keys() {
				n := len(cat.Examples(key.Category, key.Item))
				if n == 0 {
					fmt.Fprintf(out, "  %s\n", key)
					continue
				}
				fmt.Fprintf(out, "  %s  %d example(s)\n", key, n)
			}
			return nil
		},
	}
}

func request(key catalog.Key, input string, parts runtime.Selector) runtime.Request {
	return runtime.Request{
		Category: uint16(key.Category),
		Item:     uint8(key.Item),
		Input:    input,
		Parts:    parts,
	}
}

// checkCatalog rejects keys the module does not advertise. Modules without
// a catalog accept any key and report unsupported puzzles themselves.
func checkCatalog(s *session, key catalog.Key) error {
	cat := s.sup.Catalog()
	if cat.Len() == 0 || cat.Has(key.Category, key.Item) {
		return nil
	}
	return fmt.Errorf("puzzle %s is not supported by %s", key, s.sup.Module().Name())
}
