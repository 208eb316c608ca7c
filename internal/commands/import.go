package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ledgerline-dev/ledgerline/internal/importer"
	"github.com/ledgerline-dev/ledgerline/internal/ledger"
	"github.com/ledgerline-dev/ledgerline/internal/model"
)

func newImportCommand() *cobra.Command {
	var dir string
	var format string
	var account string
	var accountName string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import bank CSVs from the import/ directory as movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runImport(cmd, absDir, format, account, accountName)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "data directory")
	cmd.Flags().StringVar(&format, "format", "chase", "bank CSV format")
	cmd.Flags().StringVar(&account, "account", "", "account ID the statements belong to (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&accountName, "account-name", "", "name used if the account must be created")

	return cmd
}

func runImport(cmd *cobra.Command, dir, format, account, accountName string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, dir)
	if err != nil {
		return err
	}
	defer a.Close()

	parser := importer.DefaultRegistry().Get(format)
	if parser == nil {
		return fmt.Errorf("unknown import format %q", format)
	}

	// A movement needs its account to exist; create a tracked bank account on
	// first import.
	if _, ok := a.ledger.Account(account); !ok {
		name := accountName
		if name == "" {
			name = account
		}
		createAcct, _, err := ledger.NewCreateAccount(model.Account{
			ID:              account,
			Name:            name,
			Type:            model.AccountTypeBank,
			TracksMovements: true,
		})
		if err != nil {
			return err
		}
		if err := a.client.Submit(ctx, createAcct); err != nil {
			return err
		}
	}

	files, err := importer.Scan(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("Nothing to import.")
		return nil
	}

	total := 0
	for _, file := range files {
		f, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", file.Name, err)
		}
		txns, err := parser.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", file.Name, err)
		}

		for _, mov := range importer.Movements(account, txns) {
			// Deterministic ids make re-imports converge on the server.
			if _, ok := a.ledger.Movement(mov.ID); ok {
				continue
			}
			create, _, err := ledger.NewCreateMovement(mov)
			if err != nil {
				return err
			}
			if err := a.client.Submit(ctx, create); err != nil {
				return err
			}
			total++
		}

		if err := importer.MarkProcessed(dir, file.Name); err != nil {
			return err
		}
		fmt.Printf("Imported %s\n", file.Name)
	}

	if err := a.client.Reconcile(ctx); err != nil {
		return err
	}
	fmt.Printf("Imported %d movements from %d file(s)\n", total, len(files))
	return nil
}
