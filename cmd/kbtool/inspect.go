package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/outline"
)

// errInvalid makes validate exit non-zero after printing its report.
var errInvalid = errors.New("knowledge base has problems")

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that every entry and outline question resolves to itself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			questions := l.index.Questions()
			_, _ = fmt.Fprintf(out, "source:            %s\n", l.kb.Source())
			_, _ = fmt.Fprintf(out, "entries:           %d\n", l.kb.Len())
			_, _ = fmt.Fprintf(out, "outline questions: %d\n", len(questions))

			problems := 0
			if dups := duplicateIDs(outline.ExtractQuestions(l.kb.Outline())); len(dups) > 0 {
				problems += len(dups)
				_, _ = fmt.Fprintln(out, "\nid collisions:")
				for _, d := range dups {
					_, _ = fmt.Fprintf(out, "  %s\n", d)
				}
			}

			if shadowed := l.matcher.Unreachable(); len(shadowed) > 0 {
				problems += len(shadowed)
				_, _ = fmt.Fprintln(out, "\nunreachable entries:")
				for _, s := range shadowed {
					line := "  - " + s.Question
					if s.By != "" {
						line += fmt.Sprintf("  (shadowed by %q)", s.By)
					}
					_, _ = fmt.Fprintln(out, line)
				}
			}

			if bad := l.index.Unresolved(l.matcher); len(bad) > 0 {
				problems += len(bad)
				_, _ = fmt.Fprintln(out, "\nunresolved outline questions:")
				for _, q := range bad {
					line := "  - " + q
					if r := l.matcher.BestMatch(q); r != nil {
						line += fmt.Sprintf("  (resolves to %q, score %.2f)", r.Question, r.Score)
					}
					_, _ = fmt.Fprintln(out, line)
				}
			}

			if problems > 0 {
				return fmt.Errorf("%w: %d", errInvalid, problems)
			}
			_, _ = fmt.Fprintln(out, "\nok")
			return nil
		},
	}
}

// duplicateIDs reports distinct questions that share a deep-link id.
func duplicateIDs(questions []string) []string {
	first := make(map[string]string, len(questions))
	var dups []string
	for _, q := range questions {
		id := outline.QuestionID(q)
		if prev, ok := first[id]; ok && prev != q {
			dups = append(dups, fmt.Sprintf("%s: %q and %q", id, prev, q))
			continue
		}
		first[id] = q
	}
	return dups
}

func newMatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "match <question>",
		Short: "Show the offline answer for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			query := strings.Join(args, " ")

			r := l.matcher.BestMatch(query)
			if r == nil {
				_, _ = fmt.Fprintf(out, "no match at threshold %.2f\n", l.matcher.Threshold())
				return nil
			}
			_, _ = fmt.Fprintf(out, "question: %s\nscore:    %.3f\n\n%s\n", r.Question, r.Score, r.Answer)
			return nil
		},
	}
}

func newSuggestCmd(opts *options) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "suggest <question>",
		Short: "List the closest questions by trigram similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := opts.load(cmd)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			suggestions := l.matcher.Suggestions(query, k)
			if len(suggestions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no similar questions")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TRIGRAM\tQUESTION")
			for _, s := range suggestions {
				_, _ = fmt.Fprintf(tw, "%.3f\t%s\n", s.Similarity, s.Question)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 4, "number of suggestions")
	return cmd
}

func newIDsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "Print the deep-link id of every outline question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := opts.load(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, q := range l.index.Questions() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", outline.QuestionID(q), q)
			}
			return tw.Flush()
		},
	}
}

func newOutlineCmd(opts *options) *cobra.Command {
	var (
		basicID string
		asHTML  bool
	)
	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Render the outline with LINE deep links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if basicID == "" {
				basicID = opts.cfg.LineBotBasicID
			}
			if basicID == "" {
				return errors.New("--basic-id is required (or set KALYAN_LINE_BOT_BASIC_ID)")
			}
			l, err := opts.load(cmd)
			if err != nil {
				return err
			}

			build := outline.LINEDeepLink(basicID)
			text := l.index.Render(build)
			if asHTML {
				text = l.index.RenderHTML(build)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&basicID, "basic-id", "", "LINE official account basic id, e.g. @kalyan")
	cmd.Flags().BoolVar(&asHTML, "html", false, "escape non-question lines for HTML")
	return cmd
}
