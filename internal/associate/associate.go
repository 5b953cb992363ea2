// Package associate reconstructs which price and image belong to which
// listing purely from on-page geometry. It has no side effects: identical
// inputs always produce identical, order-stable output.
package associate

import (
	"math"

	"github.com/trydiscs/inventory-crawler/internal/harvest"
	"github.com/trydiscs/inventory-crawler/internal/models"
	"github.com/trydiscs/inventory-crawler/internal/validate"
)

// Claims tracks prices and images already consumed by earlier listings.
// Pass a fresh set per page (the default), or reuse one across pages for
// session-scoped exclusivity.
type Claims struct {
	prices map[int]struct{}
	images map[int]struct{}
}

func NewClaims() *Claims {
	return &Claims{
		prices: make(map[int]struct{}),
		images: make(map[int]struct{}),
	}
}

// Associate matches each validated listing, in source order, to its nearest
// unclaimed price and its nearest plausible image.
//
// A price is mandatory: a listing with no unclaimed price candidate is
// dropped entirely. An image is optional: when the nearest valid image is
// already claimed by an earlier listing the record keeps an empty image URL.
// Images whose top edge lies below the listing's vertical position are never
// considered; they typically belong to the next listing down the page.
// Distance ties favor the candidate that appeared first in harvest order.
func Associate(listings []validate.ValidatedListing, prices []harvest.PriceCandidate, images []harvest.ImageCandidate, claims *Claims) []models.InventoryRecord {
	if claims == nil {
		claims = NewClaims()
	}

	records := make([]models.InventoryRecord, 0, len(listings))

	for _, listing := range listings {
		priceIdx := nearestPrice(listing.Position, prices, claims)
		if priceIdx < 0 {
			continue
		}
		claims.prices[priceIdx] = struct{}{}

		imgURL := ""
		if imgIdx := nearestImage(listing.Position, images); imgIdx >= 0 {
			if _, taken := claims.images[imgIdx]; !taken {
				claims.images[imgIdx] = struct{}{}
				imgURL = images[imgIdx].URL
			}
		}

		records = append(records, models.InventoryRecord{
			Listing:      listing.Listing,
			DetailsURL:   listing.DetailsURL,
			ImgURL:       imgURL,
			Price:        prices[priceIdx].Amount,
			Model:        listing.Model,
			Type:         listing.PrimaryUse,
			Manufacturer: listing.Manufacturer,
			Retailer:     listing.Retailer,
		})
	}

	return records
}

func nearestPrice(pos harvest.Position, prices []harvest.PriceCandidate, claims *Claims) int {
	best := -1
	bestDist := math.Inf(1)
	for i, price := range prices {
		if _, taken := claims.prices[i]; taken {
			continue
		}
		if d := distance(pos, price.Position); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// nearestImage ignores claims on purpose: the winner is the geometrically
// nearest valid image whether or not an earlier listing took it.
func nearestImage(pos harvest.Position, images []harvest.ImageCandidate) int {
	best := -1
	bestDist := math.Inf(1)
	for i, img := range images {
		if img.TopEdgeY > pos.Y {
			continue
		}
		if d := distance(pos, img.Position); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func distance(a, b harvest.Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
