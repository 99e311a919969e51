package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/persistence"
)

var inspectEvents int

var inspectCmd = &cobra.Command{
	Use:   "inspect [character-id]",
	Short: "Show saved simulation state, or one character's psyche",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectEvents, "events", 10, "recent events to list")
}

func runInspect(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		c, err := db.LoadPsyche(args[0])
		if errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("no saved character %q", args[0])
		}
		if err != nil {
			return err
		}
		printCharacter(out, c)
		return nil
	}

	now, ok, err := db.CurrentTime()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "No saved state.")
		return nil
	}
	fmt.Fprintf(out, "Saved at t=%g\n\n", now)

	list, err := db.ListPsyches()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tARCHETYPE\tTIME\tNODES\tEDGES")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%d\t%d\n", p.CharacterID, p.Name, p.Archetype, p.Clock, p.NodeCount, p.EdgeCount)
	}
	tw.Flush()

	if inspectEvents > 0 {
		events, err := db.RecentEvents(inspectEvents)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nRecent events (%d):\n", len(events))
		for _, e := range events {
			fmt.Fprintf(out, "  t=%-8g %s\n", e.Time, e.Type)
		}
	}
	return nil
}

func printCharacter(out io.Writer, c *agents.Character) {
	p := c.Psyche
	fmt.Fprintf(out, "%s (%s)\n", c.Name, c.ID)
	if c.Archetype != "" {
		fmt.Fprintf(out, "Archetype: %s\n", c.Archetype)
	}
	fmt.Fprintf(out, "%s at t=%g\n", p, p.CurrentTime())
	fmt.Fprintf(out, "Overall satisfaction: %.2f\n\n", agents.OverallSatisfaction(p))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLABEL\tLEVEL")
	for _, n := range p.Graph().Nodes() {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", n.Kind(), graph.Label(n), graph.Scalar(n))
	}
	tw.Flush()

	if emos := p.CurrentEmotions(); len(emos) > 0 {
		fmt.Fprintln(out, "\nCurrent emotions:")
		for _, e := range emos {
			fmt.Fprintf(out, "  %-12s %.3f (decay %.2f)\n", e.Emotion, e.Intensity(), e.DecayRate())
		}
	}
	if core := p.CornerstoneMemories(); len(core) > 0 {
		fmt.Fprintln(out, "\nCornerstone memories:")
		for _, m := range core {
			fmt.Fprintf(out, "  %s [%s]\n", m.Description, m.EmotionTag)
		}
	}
	fmt.Fprintf(out, "\nMemories: %d  Rules: %d\n", len(p.Memories()), len(p.Rules()))
}
