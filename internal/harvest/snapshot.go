package harvest

// Position is a 2D document-space coordinate: viewport rect center plus the
// page scroll offset at harvest time.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ListingCandidate is an anchor element with non-empty normalized text.
type ListingCandidate struct {
	Position    Position `json:"position"`
	Text        string   `json:"text"`
	Href        string   `json:"href"`
	SourceOrder int      `json:"sourceOrder"`
}

// PriceCandidate is a currency-bearing text node resolved to an amount and
// the center of the element (or ancestor) that carried the full price token.
type PriceCandidate struct {
	Position Position `json:"position"`
	Amount   float64  `json:"amount"`
}

// ImageCandidate is an img/picture/input-with-src element with a resolved
// absolute URL. TopEdgeY lets association reject images that lie below the
// listing they would otherwise be nearest to.
type ImageCandidate struct {
	Position Position `json:"position"`
	URL      string   `json:"url"`
	TopEdgeY float64  `json:"topEdgeY"`
}

// PageSnapshot is everything harvested from one rendered page. Built once
// per harvest call and discarded after validation and association.
type PageSnapshot struct {
	Listings []ListingCandidate `json:"listings"`
	Prices   []PriceCandidate   `json:"prices"`
	Images   []ImageCandidate   `json:"images"`
	PageURL  string             `json:"pageUrl"`
}

// Hrefs returns the raw href of every listing candidate, in source order.
func (s *PageSnapshot) Hrefs() []string {
	hrefs := make([]string, 0, len(s.Listings))
	for _, l := range s.Listings {
		hrefs = append(hrefs, l.Href)
	}
	return hrefs
}
