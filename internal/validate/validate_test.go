package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trydiscs/inventory-crawler/internal/catalog"
	"github.com/trydiscs/inventory-crawler/internal/harvest"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(map[string][]catalog.Model{
		"Innova": {
			{Name: "Aviar", PrimaryUse: "putt_approach"},
			{Name: "Pro Aviar", PrimaryUse: "putt_approach"},
			{Name: "Destroyer", PrimaryUse: "distance_driver"},
		},
		"Discraft": {
			{Name: "Zone", PrimaryUse: "putt_approach"},
		},
	}, nil)
}

func candidate(text, href string) harvest.ListingCandidate {
	return harvest.ListingCandidate{
		Text:     text,
		Href:     href,
		Position: harvest.Position{X: 10, Y: 10},
	}
}

func TestValidateMatchesKnownModel(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		candidate("Innova Destroyer Star Plastic", "/products/destroyer"),
	}, "Innova", "https://shop.example.com/search")

	require.Len(t, got, 1)
	assert.Equal(t, "Destroyer", got[0].Model)
	assert.Equal(t, "distance_driver", got[0].PrimaryUse)
	assert.Equal(t, "Innova", got[0].Manufacturer)
	assert.Equal(t, "shop.example.com", got[0].Retailer)
	assert.Equal(t, "https://shop.example.com/products/destroyer", got[0].DetailsURL)
}

func TestValidateLongestModelNameWins(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		candidate("Innova Pro Aviar Putter", "/products/pro-aviar"),
	}, "Innova", "https://shop.example.com")

	require.Len(t, got, 1)
	assert.Equal(t, "Pro Aviar", got[0].Model)
}

func TestValidateRejectsForeignManufacturer(t *testing.T) {
	v := New(testCatalog())

	// Mentions Discraft even though the model text would match; a
	// competitor listing must not be attributed to the target brand.
	got := v.Validate([]harvest.ListingCandidate{
		candidate("Discraft Zone vs Innova Destroyer comparison", "/products/zone"),
	}, "Innova", "https://shop.example.com")

	assert.Empty(t, got)
}

func TestValidateRequiresWholeWordMatch(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		candidate("Innova Destroyers Club Night", "/products/club"),
	}, "Innova", "https://shop.example.com")

	assert.Empty(t, got)
}

func TestValidateDropsCandidatesWithoutLetters(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		candidate("12.99", "/products/x"),
		candidate("---", "/products/y"),
	}, "Innova", "https://shop.example.com")

	assert.Empty(t, got)
}

func TestValidateDropsUnresolvableHref(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		{Text: "Innova Destroyer", Href: "://bad url"},
	}, "Innova", "https://shop.example.com")

	assert.Empty(t, got)
}

func TestValidateResolvesRelativeHref(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		candidate("Aviar putter", "../products/aviar?variant=3"),
	}, "Innova", "https://shop.example.com/collections/putters/")

	require.Len(t, got, 1)
	assert.Equal(t, "https://shop.example.com/collections/products/aviar?variant=3", got[0].DetailsURL)
}

func TestValidateUnknownManufacturerReturnsNothing(t *testing.T) {
	v := New(testCatalog())

	got := v.Validate([]harvest.ListingCandidate{
		candidate("Aviar putter", "/products/aviar"),
	}, "Nobody", "https://shop.example.com")

	assert.Empty(t, got)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "Innova   Destroyer\n\tStar", "Innova Destroyer Star"},
		{"strips abnormal characters", "Aviar™ (Putter)!", "Aviar Putter"},
		{"keeps dots and dashes", "Buzzz 177g - 5.0 rated", "Buzzz 177g - 5.0 rated"},
		{"trims", "  Zone  ", "Zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}
