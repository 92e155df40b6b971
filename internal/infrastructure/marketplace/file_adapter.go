package marketplace

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/fieldmap"
	"github.com/reseller/crosslist/internal/domain/listing"
)

// FileSink stores generated import and feed files. Implementations return
// the location the file can be fetched or downloaded from.
type FileSink interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// fileFormat describes the layout of one platform's import file
type fileFormat struct {
	delimiter   rune
	extension   string
	contentType string
	// idColumn names the column that identifies the item in update rows
	idColumn string
	// statusColumn holds delisted or available in update rows
	statusColumn string
	delisted     string
	available    string
}

var (
	csvFormat = fileFormat{
		delimiter:    ',',
		extension:    "csv",
		contentType:  "text/csv",
		idColumn:     "SKU",
		statusColumn: "Status",
		delisted:     "delisted",
		available:    "available",
	}
	feedFormat = fileFormat{
		delimiter:    ',',
		extension:    "csv",
		contentType:  "text/csv",
		idColumn:     "id",
		statusColumn: "availability",
		delisted:     "out of stock",
		available:    "in stock",
	}
	tsvFeedFormat = fileFormat{
		delimiter:    '\t',
		extension:    "tsv",
		contentType:  "text/tab-separated-values",
		idColumn:     "id",
		statusColumn: "availability",
		delisted:     "out of stock",
		available:    "in stock",
	}
)

// FileAdapter publishes by writing a bulk-import CSV (csv kind) or a catalog
// feed (feed kind) to a FileSink. The platform consumes the file; the
// adapter keeps no remote state beyond the SKU used as the item id.
type FileAdapter struct {
	baseAdapter
	sink   FileSink
	format fileFormat
	now    func() time.Time
}

func newFileAdapter(p listing.Platform, table fieldmap.Table, format fileFormat, sink FileSink, logger *zap.Logger) *FileAdapter {
	return &FileAdapter{
		baseAdapter: newBaseAdapter(p, table, logger),
		sink:        sink,
		format:      format,
		now:         time.Now,
	}
}

// NewPoshmarkAdapter creates the Poshmark bulk-upload CSV adapter
func NewPoshmarkAdapter(sink FileSink, logger *zap.Logger) *FileAdapter {
	return newFileAdapter(listing.PlatformPoshmark, poshmarkTable(), csvFormat, sink, logger)
}

// NewBonanzaAdapter creates the Bonanza CSV import adapter
func NewBonanzaAdapter(sink FileSink, logger *zap.Logger) *FileAdapter {
	return newFileAdapter(listing.PlatformBonanza, bonanzaTable(), csvFormat, sink, logger)
}

// NewFacebookCatalogAdapter creates the Facebook catalog feed adapter.
// storefrontURL is the public shop the feed's product links point to.
func NewFacebookCatalogAdapter(sink FileSink, storefrontURL string, logger *zap.Logger) *FileAdapter {
	return newFileAdapter(listing.PlatformFacebook, facebookTable(storefrontURL), feedFormat, sink, logger)
}

// NewGoogleShoppingAdapter creates the Google Merchant Center feed adapter
func NewGoogleShoppingAdapter(sink FileSink, storefrontURL string, logger *zap.Logger) *FileAdapter {
	return newFileAdapter(listing.PlatformGoogleShopping, googleShoppingTable(storefrontURL), tsvFeedFormat, sink, logger)
}

// NewPinterestAdapter creates the Pinterest catalog feed adapter
func NewPinterestAdapter(sink FileSink, storefrontURL string, logger *zap.Logger) *FileAdapter {
	return newFileAdapter(listing.PlatformPinterest, pinterestTable(storefrontURL), feedFormat, sink, logger)
}

// Publish implements listing.Adapter
func (a *FileAdapter) Publish(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult {
	return a.publish(ctx, l, a.writeListing)
}

func (a *FileAdapter) writeListing(ctx context.Context, l *listing.UnifiedListing, payload listing.Payload) (listing.PlatformResult, error) {
	header := a.table.Fields()
	row := make([]string, len(header))
	for i, name := range header {
		row[i] = payload.String(name)
	}

	location, err := a.write(ctx, "publish", l.SKU, header, row)
	if err != nil {
		return listing.PlatformResult{}, err
	}
	res := listing.SucceededResult(a.platform, location, "")
	res.PlatformRef = l.SKU
	a.logger.Info("listing file written",
		zap.String("listing_id", l.ID.String()),
		zap.String("location", location),
	)
	return res, nil
}

// Cancel writes an update row that marks the item delisted
func (a *FileAdapter) Cancel(ctx context.Context, link *listing.PlatformListingLink) error {
	_, err := a.writeUpdate(ctx, "cancel", link, a.format.delisted, 0)
	return err
}

// UpdateQuantity writes an update row with the new quantity
func (a *FileAdapter) UpdateQuantity(ctx context.Context, link *listing.PlatformListingLink, quantity int) error {
	_, err := a.writeUpdate(ctx, "update_quantity", link, a.format.available, quantity)
	return err
}

func (a *FileAdapter) writeUpdate(ctx context.Context, op string, link *listing.PlatformListingLink, status string, quantity int) (string, error) {
	if link.PlatformRef == "" {
		return "", a.permanent(op, fmt.Errorf("%w: link has no sku", listing.ErrPlatformRejected), "update the item in the "+a.platform.DisplayName()+" dashboard")
	}
	header := []string{a.format.idColumn, a.format.statusColumn, "quantity"}
	row := []string{link.PlatformRef, status, strconv.Itoa(quantity)}
	return a.write(ctx, op, link.PlatformRef+"-"+op, header, row)
}

// write encodes one header and row and stores them under a time-stamped key
func (a *FileAdapter) write(ctx context.Context, op, name string, header, row []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = a.format.delimiter
	if err := w.Write(header); err != nil {
		return "", a.permanent(op, fmt.Errorf("%w: %v", listing.ErrOutputWriteFailed, err), "")
	}
	if err := w.Write(row); err != nil {
		return "", a.permanent(op, fmt.Errorf("%w: %v", listing.ErrOutputWriteFailed, err), "")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", a.permanent(op, fmt.Errorf("%w: %v", listing.ErrOutputWriteFailed, err), "")
	}

	now := a.now().UTC()
	key := path.Join(
		a.platform.String(),
		now.Format("20060102"),
		fmt.Sprintf("%s_%s.%s", sanitizeKey(name), now.Format("150405.000000"), a.format.extension),
	)
	location, err := a.sink.Write(ctx, key, buf.Bytes(), a.format.contentType)
	if err != nil {
		return "", a.transient(op, fmt.Errorf("%w: %v", listing.ErrOutputWriteFailed, err))
	}
	return location, nil
}

// sanitizeKey keeps object keys and file names free of separators
func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

var _ listing.Adapter = (*FileAdapter)(nil)
