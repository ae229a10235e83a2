package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cloudigrade/integrade/internal/render"
	"github.com/cloudigrade/integrade/internal/scenario"
)

func newExpectCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "expect <scenario.yaml>",
		Short: "Predict the reports for a scenario without contacting the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			fallback := time.Now()
			if at != "" {
				if fallback, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("parsing --at: %w", err)
				}
			}
			now := s.EvaluationTime(fallback)

			r, err := s.Evaluate(now)
			if err != nil {
				return err
			}
			timelines, err := s.Timelines(now)
			if err != nil {
				return err
			}
			span, err := scenario.Span(timelines, now)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s evaluated at %s (%s)\n", s.Name, now.Format(time.RFC3339), humanize.Time(now))
			if span != nil {
				fmt.Fprintf(w, "activity from %s to %s\n", span.Start.Format(time.RFC3339), span.End.Format(time.RFC3339))
			}
			running := 0
			for _, tl := range timelines {
				if tl.Running() {
					running++
				}
			}
			fmt.Fprintf(w, "%d instances, %d still running\n", len(timelines), running)
			render.Overview(w, "Expected account summary", r)
			render.Images(w, r)
			render.Graphs(w, r)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluation time in RFC 3339 when the scenario does not pin one")
	return cmd
}
