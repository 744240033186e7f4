package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aylaurquizo/KTPHackathon/internal/backend"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the DDL for the storefront tables",
	Long: `Print the CREATE TABLE statements for products, mystery_boxes and cart_items.

The hosted backend has no migration endpoint; paste the output into its SQL editor.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), backend.Schema)
	return err
}
