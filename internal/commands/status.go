package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerline-dev/ledgerline/internal/model"
)

func newStatusCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync state and unreconciled movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runStatus(cmd, absDir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "data directory")
	return cmd
}

func runStatus(cmd *cobra.Command, dir string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, dir)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.queue.Len(ctx)
	if err != nil {
		return err
	}
	cursor, err := a.queue.Cursor(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("User:             %s\n", a.cfg.User)
	fmt.Printf("Client ID:        %s\n", a.client.ClientID())
	fmt.Printf("Pending mutations: %d\n", pending)
	if cursor > 0 {
		fmt.Printf("Last event:       %s\n", time.Unix(int64(cursor), 0).UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("Last event:       never\n")
	}

	open := 0
	for _, mov := range a.ledger.Movements() {
		if mov.Status != model.StatusCompleted {
			open++
		}
	}
	fmt.Printf("Unreconciled movements: %d\n", open)
	return nil
}
