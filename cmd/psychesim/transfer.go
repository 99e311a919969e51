package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/persistence"
	"github.com/talgya/psyche/internal/psyche"
)

var (
	exportWorld     bool
	importPrune     bool
	importArchetype string
)

var exportCmd = &cobra.Command{
	Use:   "export <character-id> [file]",
	Short: "Write a saved psyche (or the world with --world) as JSON",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a psyche snapshot from JSON into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportWorld, "world", false, "export the world instead; the only argument is the output file")
	importCmd.Flags().BoolVar(&importPrune, "prune", false, "drop edges that reference missing nodes instead of failing")
	importCmd.Flags().StringVar(&importArchetype, "archetype", "", "archetype label to store with the character")
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if exportWorld {
		if len(args) > 1 {
			return errors.New("--world takes at most one argument")
		}
		w, err := db.LoadWorld()
		if err != nil {
			return fmt.Errorf("load world: %w", err)
		}
		return withOutput(cmd, args, 0, w.WriteJSON)
	}

	if len(args) == 0 {
		return errors.New("character id required")
	}
	c, err := db.LoadPsyche(args[0])
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("no saved character %q", args[0])
	}
	if err != nil {
		return err
	}
	return withOutput(cmd, args, 1, c.Psyche.WriteJSON)
}

// withOutput writes to args[i] when present, otherwise to stdout.
func withOutput(cmd *cobra.Command, args []string, i int, write func(io.Writer) error) error {
	if len(args) <= i {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(args[i])
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	snap, err := psyche.ReadSnapshot(f)
	if err != nil {
		return err
	}
	if snap.CharacterID == "" {
		return errors.New("snapshot has no character_id")
	}

	var p *psyche.Psyche
	if importPrune {
		var pruned []string
		p, pruned, err = psyche.ImportUnchecked(snap)
		if len(pruned) > 0 {
			slog.Warn("dropped dangling edges", "character", snap.CharacterID, "count", len(pruned))
		}
	} else {
		p, err = psyche.Restore(snap)
	}
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SavePsyche(agents.FromPsyche(p, importArchetype)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %s\n", p.CharacterID, p)
	return nil
}
