package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

type fakeRest struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeRest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
	status, payload := f.status, f.body
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

func (f *fakeRest) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestDataClient(t *testing.T, fake *fakeRest) *DataClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := supabase.New(srv.URL, "anon-key", supabase.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	data, err := New(client, zap.NewNop())
	require.NoError(t, err)
	data.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }
	return data
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, supabase.ErrNotConfigured)
}

func TestMysteryBoxesCategoryFilter(t *testing.T) {
	cases := []struct {
		name     string
		category string
		wantEq   string
	}{
		{name: "no category", category: ""},
		{name: "all sentinel", category: "all"},
		{name: "specific", category: "creatine", wantEq: "eq.creatine"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeRest{body: `[{"id":3,"title":"Creatine Performance Box","price":"$39.99","rating":"4.5 out of 5 stars","category":"creatine","image_url":"images/creatine.avif","contents":["creatine"],"created_at":"2024-05-01T10:20:30.123456","updated_at":"2024-05-01T10:20:30"}]`}
			data := newTestDataClient(t, fake)

			boxes, err := data.MysteryBoxes(context.Background(), tc.category)
			require.NoError(t, err)
			require.Len(t, boxes, 1)
			require.Equal(t, RowID("3"), boxes[0].ID)
			require.Equal(t, "images/creatine.avif", boxes[0].ImageURL)
			require.NotNil(t, boxes[0].CreatedAt)
			require.Equal(t, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC), boxes[0].CreatedAt.Time)

			req := fake.last(t)
			require.Equal(t, "/rest/v1/mystery_boxes", req.Path)
			require.Equal(t, "*", req.Query.Get("select"))
			require.Equal(t, "created_at.desc", req.Query.Get("order"))
			require.Equal(t, tc.wantEq, req.Query.Get("category"))
		})
	}
}

func TestProductsReturnsEmptySliceForEmptyTable(t *testing.T) {
	fake := &fakeRest{body: `[]`}
	data := newTestDataClient(t, fake)

	products, err := data.Products(context.Background(), "all")
	require.NoError(t, err)
	require.NotNil(t, products)
	require.Empty(t, products)
	require.Equal(t, "/rest/v1/products", fake.last(t).Path)
}

func TestMysteryBoxesPropagatesBackendError(t *testing.T) {
	fake := &fakeRest{status: http.StatusInternalServerError, body: `{"message":"boom"}`}
	data := newTestDataClient(t, fake)

	boxes, err := data.MysteryBoxes(context.Background(), "")
	require.Nil(t, boxes)
	require.EqualError(t, err, "boom")
}

func TestAddToCart(t *testing.T) {
	userID := "8f1c7a52-6c1e-4b7b-9f5d-3f5f1f7e2a10"
	cases := []struct {
		name     string
		boxID    string
		userID   *string
		status   int
		want     bool
		wantSent bool
		wantUser any
	}{
		{name: "anonymous", boxID: "7", status: http.StatusCreated, want: true, wantSent: true, wantUser: nil},
		{name: "signed in", boxID: "7", userID: &userID, status: http.StatusCreated, want: true, wantSent: true, wantUser: userID},
		{name: "backend rejects", boxID: "7", status: http.StatusConflict, want: false, wantSent: true},
		{name: "malformed user", boxID: "7", userID: strPtr("not-a-uuid"), want: false},
		{name: "missing box", boxID: " ", want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeRest{status: tc.status, body: `{"message":"insert or update violates foreign key constraint"}`}
			if tc.status == http.StatusCreated {
				fake.body = ""
			}
			data := newTestDataClient(t, fake)

			require.Equal(t, tc.want, data.AddToCart(context.Background(), tc.boxID, tc.userID))

			fake.mu.Lock()
			sent := len(fake.requests) > 0
			fake.mu.Unlock()
			require.Equal(t, tc.wantSent, sent)
			if !tc.wantSent || !tc.want {
				return
			}

			req := fake.last(t)
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "/rest/v1/cart_items", req.Path)
			var rows []map[string]any
			require.NoError(t, json.Unmarshal(req.Body, &rows))
			want := []map[string]any{{
				"box_id":     "7",
				"user_id":    tc.wantUser,
				"quantity":   float64(1),
				"created_at": "2025-03-01T09:30:00Z",
			}}
			if diff := cmp.Diff(want, rows); diff != "" {
				t.Fatalf("unexpected cart row (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUserCartJoinsBoxes(t *testing.T) {
	userID := "8f1c7a52-6c1e-4b7b-9f5d-3f5f1f7e2a10"
	fake := &fakeRest{body: `[{"id":1,"box_id":7,"user_id":"` + userID + `","quantity":1,"created_at":"2025-03-01T09:30:00.5+00:00","mystery_boxes":{"title":"Keto-Friendly Box","price":"$44.99","image_url":"images/keto.avif"}}]`}
	data := newTestDataClient(t, fake)

	lines := data.UserCart(context.Background(), userID)
	require.Len(t, lines, 1)
	require.Equal(t, RowID("7"), lines[0].BoxID)
	require.NotNil(t, lines[0].CreatedAt)
	require.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 500000000, time.UTC), lines[0].CreatedAt.Time)
	require.NotNil(t, lines[0].Box)
	require.Equal(t, "Keto-Friendly Box", lines[0].Box.Title)

	req := fake.last(t)
	require.Equal(t, "*,mystery_boxes(title,price,image_url)", req.Query.Get("select"))
	require.Equal(t, "eq."+userID, req.Query.Get("user_id"))
}

func TestUserCartSwallowsErrors(t *testing.T) {
	fake := &fakeRest{status: http.StatusUnauthorized, body: `{"message":"JWT expired"}`}
	data := newTestDataClient(t, fake)

	lines := data.UserCart(context.Background(), "8f1c7a52-6c1e-4b7b-9f5d-3f5f1f7e2a10")
	require.NotNil(t, lines)
	require.Empty(t, lines)

	require.Empty(t, data.UserCart(context.Background(), "nope"))
}

func TestInsertRejectsEmptyBatches(t *testing.T) {
	data := newTestDataClient(t, &fakeRest{})
	require.Error(t, data.InsertBoxes(context.Background(), nil))
	require.Error(t, data.InsertProducts(context.Background(), nil))
}

func TestRowIDAcceptsNumbersAndStrings(t *testing.T) {
	var ids []RowID
	require.NoError(t, json.Unmarshal([]byte(`[12, "5d1f", null]`), &ids))
	require.Equal(t, []RowID{"12", "5d1f", ""}, ids)
}

func strPtr(s string) *string {
	return &s
}

func TestProductsDecodesZonelessTimestamps(t *testing.T) {
	fake := &fakeRest{body: `[{"id":1,"title":"Micronized Creatine","category":"creatine","created_at":"2024-05-01T10:20:30.123456"}]`}
	data := newTestDataClient(t, fake)

	products, err := data.Products(context.Background(), "creatine")
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].CreatedAt)
	require.Equal(t, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC), products[0].CreatedAt.Time)
}

func TestTimestampLayouts(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)
	cases := map[string]time.Time{
		`"2024-05-01T10:20:30Z"`:         want,
		`"2024-05-01T12:20:30+02:00"`:    want,
		`"2024-05-01T10:20:30"`:          want,
		`"2024-05-01 10:20:30"`:          want,
		`"2024-05-01 10:20:30.25+00:00"`: want.Add(250 * time.Millisecond),
		`"2024-05-01T10:20:30.000001"`:   want.Add(time.Microsecond),
		`null`:                           {},
	}
	for raw, expected := range cases {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		require.True(t, expected.Equal(ts.Time), "%s decoded to %s", raw, ts.Time)
	}

	var ts Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	require.Error(t, json.Unmarshal([]byte(`1714558830`), &ts))

	out, err := json.Marshal(Timestamp{Time: want})
	require.NoError(t, err)
	require.JSONEq(t, `"2024-05-01T10:20:30Z"`, string(out))
}
