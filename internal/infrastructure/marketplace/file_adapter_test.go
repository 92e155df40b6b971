package marketplace

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
)

func readRows(t *testing.T, data string, comma rune) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(data))
	r.Comma = comma
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func column(t *testing.T, rows [][]string, name string) string {
	t.Helper()
	require.Len(t, rows, 2)
	for i, h := range rows[0] {
		if h == name {
			return rows[1][i]
		}
	}
	t.Fatalf("column %q not found in %v", name, rows[0])
	return ""
}

func TestFileAdapter_Poshmark_Publish(t *testing.T) {
	sink := newMemorySink()
	a := NewPoshmarkAdapter(sink, nil)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

	res := a.Publish(context.Background(), blueShirt())

	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, listing.KindCSV, res.Kind)
	assert.Equal(t, "CL-BLUE-1", res.PlatformRef)
	assert.False(t, res.RequiresManualAction)

	key, data := sink.only()
	assert.Equal(t, "mem://"+key, res.ListingID)
	assert.True(t, strings.HasPrefix(key, "poshmark/20260301/CL-BLUE-1_"), key)
	assert.True(t, strings.HasSuffix(key, ".csv"), key)
	assert.Equal(t, "text/csv", sink.types[key])

	rows := readRows(t, data, ',')
	assert.Equal(t, poshmarkTable().Fields(), rows[0])
	assert.Equal(t, "Blue Shirt", column(t, rows, "Title"))
	assert.Equal(t, "$25.00", column(t, rows, "Price"))
	assert.Equal(t, "Used", column(t, rows, "Condition"))
	assert.Equal(t, "Men", column(t, rows, "Category"))
	assert.Equal(t, "https://img.example.com/front.jpg", column(t, rows, "Photo 1"))
	assert.Equal(t, "https://img.example.com/back.jpg", column(t, rows, "Photo 2"))
	assert.Equal(t, "", column(t, rows, "Photo 3"))
}

func TestFileAdapter_ValidationFailureWritesNothing(t *testing.T) {
	sink := newMemorySink()
	a := NewPoshmarkAdapter(sink, nil)
	l := blueShirt()
	l.Category = listing.Category{}

	res := a.Publish(context.Background(), l)

	assert.False(t, res.Success)
	assert.Equal(t, listing.ErrorKindValidation, res.Error.Kind)
	assert.Empty(t, sink.files)
}

func TestFileAdapter_SinkFailureIsTransient(t *testing.T) {
	sink := newMemorySink()
	sink.err = errDiskFull
	a := NewBonanzaAdapter(sink, nil)

	res := a.Publish(context.Background(), blueShirt())

	assert.False(t, res.Success)
	assert.Equal(t, listing.ErrorKindTransient, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "disk full")
}

func TestFileAdapter_GoogleShopping_WritesTSVFeed(t *testing.T) {
	sink := newMemorySink()
	a := NewGoogleShoppingAdapter(sink, "https://shop.example.com", nil)

	res := a.Publish(context.Background(), blueShirt())

	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, listing.KindFeed, res.Kind)
	key, data := sink.only()
	assert.True(t, strings.HasSuffix(key, ".tsv"), key)

	rows := readRows(t, data, '\t')
	assert.Equal(t, "CL-BLUE-1", column(t, rows, "id"))
	assert.Equal(t, "25.00 USD", column(t, rows, "price"))
	assert.Equal(t, "in stock", column(t, rows, "availability"))
	assert.Equal(t, "used", column(t, rows, "condition"))
	assert.Equal(t, "https://shop.example.com/items/CL-BLUE-1", column(t, rows, "link"))
	assert.Equal(t, "https://img.example.com/front.jpg", column(t, rows, "image_link"))
	assert.Equal(t, "https://img.example.com/back.jpg", column(t, rows, "additional_image_link"))
}

func TestFileAdapter_CancelAndUpdateWriteUpdateRows(t *testing.T) {
	tests := []struct {
		name   string
		build  func(FileSink) *FileAdapter
		action func(context.Context, *FileAdapter, *listing.PlatformListingLink) error
		want   []string
	}{
		{
			name:  "csv cancel",
			build: func(s FileSink) *FileAdapter { return NewPoshmarkAdapter(s, nil) },
			action: func(ctx context.Context, a *FileAdapter, l *listing.PlatformListingLink) error {
				return a.Cancel(ctx, l)
			},
			want: []string{"CL-BLUE-1", "delisted", "0"},
		},
		{
			name:  "feed quantity",
			build: func(s FileSink) *FileAdapter { return NewFacebookCatalogAdapter(s, "https://shop.example.com", nil) },
			action: func(ctx context.Context, a *FileAdapter, l *listing.PlatformListingLink) error {
				return a.UpdateQuantity(ctx, l, 2)
			},
			want: []string{"CL-BLUE-1", "in stock", "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMemorySink()
			a := tt.build(sink)

			err := tt.action(context.Background(), a, &listing.PlatformListingLink{PlatformRef: "CL-BLUE-1"})

			require.NoError(t, err)
			_, data := sink.only()
			rows := readRows(t, data, ',')
			require.Len(t, rows, 2)
			assert.Equal(t, tt.want, rows[1])
		})
	}
}

func TestFileAdapter_CancelWithoutSKU(t *testing.T) {
	a := NewPoshmarkAdapter(newMemorySink(), nil)

	err := a.Cancel(context.Background(), &listing.PlatformListingLink{})

	assert.True(t, listing.IsPermanent(err))
}
