package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshot(t *testing.T) {
	raw := `{
		"pageUrl": "https://shop.example.com/search?q=innova",
		"listings": [
			{"position": {"x": 50, "y": 120}, "text": "Innova Destroyer", "href": "/products/destroyer", "sourceOrder": 0},
			{"position": {"x": 50, "y": 340}, "text": "Innova Aviar", "href": "/products/aviar", "sourceOrder": 1}
		],
		"prices": [
			{"position": {"x": 52, "y": 150}, "amount": 19.99}
		],
		"images": [
			{"position": {"x": 50, "y": 60}, "url": "https://cdn.example.com/destroyer.jpg", "topEdgeY": 20}
		]
	}`

	snap, err := parseSnapshot(raw)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/search?q=innova", snap.PageURL)
	require.Len(t, snap.Listings, 2)
	assert.Equal(t, "Innova Destroyer", snap.Listings[0].Text)
	assert.Equal(t, 120.0, snap.Listings[0].Position.Y)
	assert.Equal(t, 1, snap.Listings[1].SourceOrder)

	require.Len(t, snap.Prices, 1)
	assert.Equal(t, 19.99, snap.Prices[0].Amount)

	require.Len(t, snap.Images, 1)
	assert.Equal(t, 20.0, snap.Images[0].TopEdgeY)
}

func TestParseSnapshotRejectsNonString(t *testing.T) {
	_, err := parseSnapshot(map[string]interface{}{"listings": nil})
	require.Error(t, err)

	_, err = parseSnapshot(nil)
	require.Error(t, err)
}

func TestParseSnapshotRejectsMalformedJSON(t *testing.T) {
	_, err := parseSnapshot(`{"listings": [`)
	require.Error(t, err)
}

func TestHrefs(t *testing.T) {
	snap := &PageSnapshot{
		Listings: []ListingCandidate{
			{Href: "/products/destroyer"},
			{Href: "/products/aviar"},
			{Href: ""},
		},
	}

	assert.Equal(t, []string{"/products/destroyer", "/products/aviar", ""}, snap.Hrefs())
}
