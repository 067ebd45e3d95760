// Package seed implements the seed subcommand: it loads the breed
// vocabulary and ancestry edges from a YAML file into the datastore.
package seed

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cattle-scans/backend/internal/breed"
	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/datastore"
)

// Command creates the seed subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [breeds.yaml]",
		Short: "Import the breed vocabulary from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(settings, args[0])
		},
	}
}

func runSeed(settings *conf.Settings, path string) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database output enabled, enable output.sqlite or output.mysql")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := breed.NewRegistry(store)

	count, err := registry.ImportSeed(context.Background(), path)
	if err != nil {
		return err
	}

	fmt.Printf("imported %d breeds from %s\n", count, path)
	return nil
}
