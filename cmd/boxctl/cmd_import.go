package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
)

var (
	productsFile string
	boxesFile    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-insert scraped products or curated boxes",
}

var importProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "Insert scraped supplements into the products table",
	Long: `Read a JSON array of scraped supplements ({title, price, rating, source, url})
and insert it into products. Rows without a category are categorized by title keywords.`,
	Args: cobra.NoArgs,
	RunE: runImportProducts,
}

var importBoxesCmd = &cobra.Command{
	Use:   "boxes",
	Short: "Insert curated mystery boxes into the mystery_boxes table",
	Args:  cobra.NoArgs,
	RunE:  runImportBoxes,
}

func init() {
	importProductsCmd.Flags().StringVarP(&productsFile, "file", "f", "supplements.json", "scraped products JSON file")
	importBoxesCmd.Flags().StringVarP(&boxesFile, "file", "f", "boxes.json", "mystery boxes JSON file")
}

type scrapedProduct struct {
	Title       string `json:"title"`
	Price       string `json:"price"`
	Rating      string `json:"rating"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type boxInput struct {
	Title       string          `json:"title"`
	Price       string          `json:"price"`
	Rating      string          `json:"rating"`
	Description string          `json:"description"`
	Contents    json.RawMessage `json:"contents"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	ImageURL    string          `json:"image_url"`
	Value       string          `json:"value"`
	Savings     string          `json:"savings"`
}

func runImportProducts(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	var scraped []scrapedProduct
	if err := readJSON(productsFile, &scraped); err != nil {
		return err
	}
	records := productRecords(scraped)

	st, err := storeFromConfig(ctx)
	if err != nil {
		return err
	}
	if err := st.InsertProducts(ctx, records); err != nil {
		return fmt.Errorf("insert products: %w", err)
	}
	logger.Info("products imported", zap.String("file", productsFile), zap.Int("count", len(records)))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products from %s\n", len(records), productsFile)
	return err
}

func runImportBoxes(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	var input []boxInput
	if err := readJSON(boxesFile, &input); err != nil {
		return err
	}
	boxes := boxRows(input)

	st, err := storeFromConfig(ctx)
	if err != nil {
		return err
	}
	if err := st.InsertBoxes(ctx, boxes); err != nil {
		return fmt.Errorf("insert boxes: %w", err)
	}
	logger.Info("boxes imported", zap.String("file", boxesFile), zap.Int("count", len(boxes)))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d mystery boxes from %s\n", len(boxes), boxesFile)
	return err
}

// productRecords fills the category from the title when the scrape left it blank. The title
// doubles as the description, as the scraper collects nothing richer.
func productRecords(scraped []scrapedProduct) []backend.ProductRecord {
	records := make([]backend.ProductRecord, 0, len(scraped))
	for _, p := range scraped {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}
		category := strings.TrimSpace(p.Category)
		if category == "" {
			category = catalog.Categorize(title)
		}
		description := strings.TrimSpace(p.Description)
		if description == "" {
			description = title
		}
		records = append(records, backend.ProductRecord{
			Title:       title,
			Price:       p.Price,
			Rating:      p.Rating,
			Source:      p.Source,
			URL:         p.URL,
			Category:    category,
			Description: description,
		})
	}
	return records
}

// boxRows accepts either "image" (the catalog document key) or "image_url" (the column name).
func boxRows(input []boxInput) []backend.Box {
	boxes := make([]backend.Box, 0, len(input))
	for _, in := range input {
		image := in.ImageURL
		if image == "" {
			image = in.Image
		}
		contents := in.Contents
		if len(contents) == 0 || string(contents) == "null" {
			contents = json.RawMessage("[]")
		}
		boxes = append(boxes, backend.Box{
			Title:       strings.TrimSpace(in.Title),
			Price:       in.Price,
			Rating:      in.Rating,
			Description: in.Description,
			Contents:    contents,
			Category:    in.Category,
			ImageURL:    image,
			Value:       in.Value,
			Savings:     in.Savings,
		})
	}
	return boxes
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func storeFromConfig(ctx context.Context) (store, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg.Backend)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
