package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/reseller/crosslist/internal/domain/listing"
)

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(_ context.Context, name string) (listing.SecretHandle, error) {
	v, ok := m[name]
	if !ok {
		return listing.SecretHandle{}, fmt.Errorf("%w: %s", listing.ErrSecretNotFound, name)
	}
	return listing.NewSecretHandle(name, v), nil
}

type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
	err   error
}

func newMemorySink() *memorySink {
	return &memorySink{files: map[string][]byte{}, types: map[string]string{}}
}

func (s *memorySink) Write(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return "mem://" + key, nil
}

func (s *memorySink) only() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.files {
		return k, string(v)
	}
	return "", ""
}

var errDiskFull = errors.New("disk full")

func blueShirt() *listing.UnifiedListing {
	l := listing.NewUnifiedListing("Blue Shirt", "Cotton button-down, worn twice.", decimal.RequireFromString("25"), listing.ConditionExcellent)
	l.SKU = "CL-BLUE-1"
	l.Photos = []listing.Photo{
		{URL: "https://img.example.com/front.jpg", Order: 0},
		{URL: "https://img.example.com/back.jpg", Order: 1},
	}
	l.Category = listing.Category{Primary: "Men", Subcategory: "Shirts"}
	l.ItemSpecifics.Brand = "acme"
	l.ItemSpecifics.Size = "M"
	l.ItemSpecifics.Color = "Blue"
	l.Shipping.ShipsFromZip = "94107"
	l.Normalize()
	return l
}
