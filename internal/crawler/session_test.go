package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trydiscs/inventory-crawler/internal/harvest"
	"github.com/trydiscs/inventory-crawler/internal/models"
)

func TestSessionSeenHrefs(t *testing.T) {
	s := NewSession("https://shop.example.com")

	snap := &harvest.PageSnapshot{
		Listings: []harvest.ListingCandidate{
			{Href: "/products/aviar"},
			{Href: "/products/destroyer"},
			{Href: ""},
		},
	}

	assert.Equal(t, 2, s.CountNewHrefs(snap))
	s.MarkSeen(snap)
	assert.Equal(t, 0, s.CountNewHrefs(snap))

	grown := &harvest.PageSnapshot{
		Listings: []harvest.ListingCandidate{
			{Href: "/products/aviar"},
			{Href: "/products/wraith"},
		},
	}
	assert.Equal(t, 1, s.CountNewHrefs(grown))
}

func TestSessionAddDeduplicates(t *testing.T) {
	s := NewSession("https://shop.example.com")

	first := s.Add([]models.InventoryRecord{
		{Listing: "Aviar", DetailsURL: "https://shop.example.com/products/aviar"},
		{Listing: "Destroyer", DetailsURL: "https://shop.example.com/products/destroyer"},
	})
	require.Len(t, first, 2)

	second := s.Add([]models.InventoryRecord{
		{Listing: "Aviar", DetailsURL: "https://shop.example.com/products/aviar"},
		{Listing: "Wraith", DetailsURL: "https://shop.example.com/products/wraith"},
	})
	require.Len(t, second, 1)
	assert.Equal(t, "Wraith", second[0].Listing)

	records := s.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "Aviar", records[0].Listing)
	assert.Equal(t, "Wraith", records[2].Listing)
}

func TestQueryParamStrategy(t *testing.T) {
	s := QueryParamStrategy("page")
	key, ok := s.QueryParam()
	require.True(t, ok)
	assert.Equal(t, "page", key)

	_, ok = PaginationStrategy{Kind: StrategyClickNext}.QueryParam()
	assert.False(t, ok)

	_, ok = PaginationStrategy{}.QueryParam()
	assert.False(t, ok)
}
