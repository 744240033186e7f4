// Package backend exposes typed accessors for the storefront tables on the hosted backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
)

const (
	TableMysteryBoxes = "mystery_boxes"
	TableProducts     = "products"
	TableCartItems    = "cart_items"

	// AllCategories is the filter sentinel that disables the category filter.
	AllCategories = "all"
)

// RowID is a primary key that may arrive as a JSON number (serial) or string (uuid).
type RowID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *RowID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("backend: invalid row id %s: %w", data, err)
	}
	*id = RowID(n.String())
	return nil
}

func (id RowID) String() string {
	return string(id)
}

// Box is a row of mystery_boxes.
type Box struct {
	ID          RowID           `json:"id,omitempty"`
	Title       string          `json:"title"`
	Price       string          `json:"price"`
	Rating      string          `json:"rating"`
	Description string          `json:"description"`
	Contents    json.RawMessage `json:"contents,omitempty"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Value       string          `json:"value"`
	Savings     string          `json:"savings"`
	CreatedAt   *Timestamp      `json:"created_at,omitempty"`
	UpdatedAt   *Timestamp      `json:"updated_at,omitempty"`
}

// ProductRecord is a row of products (an individual supplement).
type ProductRecord struct {
	ID          RowID      `json:"id,omitempty"`
	Title       string     `json:"title"`
	Price       string     `json:"price"`
	Rating      string     `json:"rating"`
	Source      string     `json:"source"`
	URL         string     `json:"url"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	CreatedAt   *Timestamp `json:"created_at,omitempty"`
}

// CartItem is the row written by AddToCart. UserID is nil for anonymous carts.
type CartItem struct {
	BoxID     string    `json:"box_id"`
	UserID    *string   `json:"user_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is a cart row joined with the box it references.
type CartLine struct {
	ID        RowID      `json:"id,omitempty"`
	BoxID     RowID      `json:"box_id"`
	UserID    *string    `json:"user_id"`
	Quantity  int        `json:"quantity"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	Box       *CartBox   `json:"mystery_boxes,omitempty"`
}

// CartBox is the embedded box summary on a cart line.
type CartBox struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	ImageURL string `json:"image_url"`
}

// DataClient is the single doorway to the hosted backend's tables.
type DataClient struct {
	client *supabase.Client
	logger *zap.Logger
	now    func() time.Time
}

// New wraps client. A nil client is rejected so callers can treat a nil *DataClient as "unconfigured".
func New(client *supabase.Client, logger *zap.Logger) (*DataClient, error) {
	if client == nil {
		return nil, supabase.ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataClient{client: client, logger: logger.Named("backend"), now: time.Now}, nil
}

// MysteryBoxes lists boxes newest first. An empty or "all" category returns every box.
func (d *DataClient) MysteryBoxes(ctx context.Context, category string) ([]Box, error) {
	var boxes []Box
	if err := d.listQuery(TableMysteryBoxes, category).Execute(ctx, &boxes); err != nil {
		d.logger.Warn("mystery boxes query failed", zap.String("category", category), zap.Error(err))
		return nil, err
	}
	if boxes == nil {
		boxes = []Box{}
	}
	return boxes, nil
}

// Products lists individual products newest first, filtered like MysteryBoxes.
func (d *DataClient) Products(ctx context.Context, category string) ([]ProductRecord, error) {
	var products []ProductRecord
	if err := d.listQuery(TableProducts, category).Execute(ctx, &products); err != nil {
		d.logger.Warn("products query failed", zap.String("category", category), zap.Error(err))
		return nil, err
	}
	if products == nil {
		products = []ProductRecord{}
	}
	return products, nil
}

func (d *DataClient) listQuery(table, category string) *supabase.Query {
	q := d.client.From(table).Select("*").Order("created_at", supabase.Descending)
	if category = strings.TrimSpace(category); category != "" && category != AllCategories {
		q = q.Eq("category", category)
	}
	return q
}

// AddToCart records one unit of boxID for userID (nil for an anonymous visitor). Failures are
// logged and reported as false; they never propagate.
func (d *DataClient) AddToCart(ctx context.Context, boxID string, userID *string) bool {
	boxID = strings.TrimSpace(boxID)
	if boxID == "" {
		d.logger.Warn("add to cart rejected", zap.String("reason", "missing box id"))
		return false
	}
	if userID != nil {
		if _, err := uuid.Parse(*userID); err != nil {
			d.logger.Warn("add to cart rejected", zap.String("reason", "invalid user id"), zap.Error(err))
			return false
		}
	}

	item := CartItem{
		BoxID:     boxID,
		UserID:    userID,
		Quantity:  1,
		CreatedAt: d.now().UTC(),
	}
	if err := d.client.Insert(ctx, TableCartItems, []CartItem{item}); err != nil {
		d.logger.Error("add to cart failed", zap.String("box_id", boxID), zap.Error(err))
		return false
	}
	return true
}

// UserCart returns the user's cart lines joined with box title, price and image. Failures yield
// an empty slice.
func (d *DataClient) UserCart(ctx context.Context, userID string) []CartLine {
	if _, err := uuid.Parse(userID); err != nil {
		d.logger.Warn("user cart rejected", zap.String("reason", "invalid user id"), zap.Error(err))
		return []CartLine{}
	}
	var lines []CartLine
	err := d.client.From(TableCartItems).
		Select("*, mystery_boxes(title, price, image_url)").
		Eq("user_id", userID).
		Execute(ctx, &lines)
	if err != nil {
		d.logger.Error("user cart query failed", zap.Error(err))
		return []CartLine{}
	}
	if lines == nil {
		lines = []CartLine{}
	}
	return lines
}

// InsertBoxes bulk-inserts mystery boxes.
func (d *DataClient) InsertBoxes(ctx context.Context, boxes []Box) error {
	if len(boxes) == 0 {
		return errors.New("backend: no boxes to insert")
	}
	return d.client.Insert(ctx, TableMysteryBoxes, boxes)
}

// InsertProducts bulk-inserts products.
func (d *DataClient) InsertProducts(ctx context.Context, products []ProductRecord) error {
	if len(products) == 0 {
		return errors.New("backend: no products to insert")
	}
	return d.client.Insert(ctx, TableProducts, products)
}
