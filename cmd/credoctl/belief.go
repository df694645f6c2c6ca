package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var withAudit bool

var showBeliefCmd = &cobra.Command{
	Use:   "show-belief <persona-id> <belief-id>",
	Short: "Print a belief with its stance history and evidence as JSON",
	Long: `Print a belief node, every stance version (oldest first), its evidence
links and, with --audit, the update records.

Examples:
  credoctl show-belief $PERSONA $BELIEF
  credoctl show-belief --sqlite data/credo.db --audit $PERSONA $BELIEF`,
	Args: cobra.ExactArgs(2),
	RunE: runShowBelief,
}

func init() {
	showBeliefCmd.Flags().BoolVar(&withAudit, "audit", false, "Include the audit trail")
}

type beliefReport struct {
	*domain.BeliefHistory
	Conviction domain.Conviction           `json:"conviction"`
	Updates    []domain.BeliefUpdateRecord `json:"updates,omitempty"`
}

func runShowBelief(cmd *cobra.Command, args []string) error {
	personaID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid persona id %q", args[0])
	}
	beliefID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid belief id %q", args[1])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	beliefs := service.NewBeliefService(s.backend.Personas, s.backend.Beliefs, s.backend.Stances, s.backend.Evidence, s.logger)
	h, err := beliefs.GetBeliefWithHistory(ctx, personaID, beliefID)
	if err != nil {
		return err
	}

	report := beliefReport{
		BeliefHistory: h,
		Conviction:    domain.ComputeConviction(h.Belief.Confidence),
	}
	if withAudit {
		report.Updates, err = beliefs.ListUpdates(ctx, personaID, beliefID)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
