package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
)

var (
	listCategory string
	listFallback string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the mystery boxes the storefront would show",
	Long: `Resolve the catalog the way the storefront does (backend, then the local JSON
file, then the built-in samples) and print each box with its star rating.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listCategory, "category", "c", listing.AllCategory, "only show this category")
	listCmd.Flags().StringVar(&listFallback, "fallback-file", "", "local catalog file (defaults to STOREFRONT_FALLBACK_FILE)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	var boxes catalog.BoxLister
	st, err := openStore(ctx, cfg.Backend)
	switch {
	case err == nil:
		boxes = st
	case errors.Is(err, errBackendNotConfigured):
		logger.Debug("backend not configured; listing local catalog")
	default:
		return err
	}

	fallback := cfg.Catalog.FallbackFile
	if listFallback != "" {
		fallback = listFallback
	}
	result := catalog.NewDefaultLoader(boxes, fallback, catalog.WithLogger(logger.Named("catalog"))).Load(ctx)

	category := listCategory
	if category == "" {
		category = listing.AllCategory
	}
	products := listing.Filter(result.Products, category)

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tCATEGORY\tRATING")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Title, p.Category, listing.Stars(p.Rating).Text())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(out, listing.EmptyMessage)
	}
	_, err = fmt.Fprintf(out, "source: %s (%d of %d products)\n", result.Source, len(products), len(result.Products))
	return err
}
