package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/credo/internal/config"
	"github.com/Harshitk-cp/credo/internal/memindex"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/Harshitk-cp/credo/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	rebuildAll     bool
	rebuildTimeout time.Duration
)

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index [persona-id...]",
	Short: "Rebuild episodic memory indexes from stored interactions",
	Long: `Rebuild the similarity index of one or more personas from the
interaction rows and write fresh snapshots to INDEX_DIR.

Run this while the server is stopped; a running server keeps its own
in-memory copy and will overwrite the snapshot on its next flush.

Examples:
  credoctl rebuild-index 2f6c0a4e-5b1d-4c0e-9a57-0d1c3b8e7f21
  credoctl rebuild-index --all`,
	RunE: runRebuildIndex,
}

func init() {
	rebuildIndexCmd.Flags().BoolVar(&rebuildAll, "all", false, "Rebuild every persona")
	rebuildIndexCmd.Flags().DurationVar(&rebuildTimeout, "timeout", 30*time.Minute, "Overall timeout")
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	if !rebuildAll && len(args) == 0 {
		return fmt.Errorf("pass one or more persona ids or --all")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rebuildTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	ids, err := rebuildTargets(ctx, s, args)
	if err != nil {
		return err
	}

	index := memindex.NewManager(config.IndexDir(), s.logger)
	memory := service.NewMemoryService(s.backend.Personas, s.backend.Interactions, index, nil,
		service.MemoryConfig{}, metrics.NewNop(), s.logger)

	out := cmd.OutOrStdout()
	for _, id := range ids {
		n, err := memory.RebuildIndex(ctx, id)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", id, err)
		}
		fmt.Fprintf(out, "%s: %d entries\n", id, n)
	}
	return nil
}

func rebuildTargets(ctx context.Context, s *session, args []string) ([]uuid.UUID, error) {
	if rebuildAll {
		personas, err := s.backend.Personas.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list personas: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(personas))
		for _, p := range personas {
			ids = append(ids, p.ID)
		}
		return ids, nil
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid persona id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
