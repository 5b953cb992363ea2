package crawler

import (
	"github.com/google/uuid"

	"github.com/trydiscs/inventory-crawler/internal/harvest"
	"github.com/trydiscs/inventory-crawler/internal/models"
)

// StrategyKind classifies how a retailer's inventory pages are advanced.
type StrategyKind int

const (
	// StrategyUnknown means no strategy has been discovered yet; the
	// controller will consult the oracle.
	StrategyUnknown StrategyKind = iota
	// StrategyQueryParam advances by rewriting a page-number URL parameter.
	StrategyQueryParam
	// StrategyClickNext advances by clicking an oracle-picked element.
	StrategyClickNext
)

// PaginationStrategy is the cached way to reach the next inventory page.
type PaginationStrategy struct {
	Kind     StrategyKind
	ParamKey string
}

// QueryParamStrategy builds the cheap URL-rewrite strategy.
func QueryParamStrategy(key string) PaginationStrategy {
	return PaginationStrategy{Kind: StrategyQueryParam, ParamKey: key}
}

// QueryParam returns the cached page-number parameter key, if one is known.
func (s PaginationStrategy) QueryParam() (string, bool) {
	if s.Kind == StrategyQueryParam && s.ParamKey != "" {
		return s.ParamKey, true
	}
	return "", false
}

// Session is crawl state scoped to one retailer. The seen sets and the
// pagination strategy accumulate across manufacturer passes so the same
// physical product found under two search terms is recorded once; the whole
// session is discarded on retailer change.
type Session struct {
	ID         string
	Retailer   string
	Strategy   PaginationStrategy
	PageNumber int

	seenHrefs map[string]struct{}
	records   map[string]struct{}
	ordered   []models.InventoryRecord
}

func NewSession(retailerURL string) *Session {
	return &Session{
		ID:         uuid.New().String(),
		Retailer:   retailerURL,
		PageNumber: 1,
		seenHrefs:  make(map[string]struct{}),
		records:    make(map[string]struct{}),
	}
}

// CountNewHrefs reports how many of the snapshot's listing hrefs have never
// been seen in this session.
func (s *Session) CountNewHrefs(snap *harvest.PageSnapshot) int {
	fresh := 0
	for _, href := range snap.Hrefs() {
		if href == "" {
			continue
		}
		if _, ok := s.seenHrefs[href]; !ok {
			fresh++
		}
	}
	return fresh
}

// MarkSeen records the snapshot's listing hrefs into the cumulative set.
func (s *Session) MarkSeen(snap *harvest.PageSnapshot) {
	for _, href := range snap.Hrefs() {
		if href == "" {
			continue
		}
		s.seenHrefs[href] = struct{}{}
	}
}

// Add merges records into the session accumulator, deduplicating by details
// URL, and returns the ones that were genuinely new.
func (s *Session) Add(records []models.InventoryRecord) []models.InventoryRecord {
	var added []models.InventoryRecord
	for _, record := range records {
		if _, ok := s.records[record.DetailsURL]; ok {
			continue
		}
		s.records[record.DetailsURL] = struct{}{}
		s.ordered = append(s.ordered, record)
		added = append(added, record)
	}
	return added
}

// Records returns every record accumulated so far, in discovery order.
func (s *Session) Records() []models.InventoryRecord {
	out := make([]models.InventoryRecord, len(s.ordered))
	copy(out, s.ordered)
	return out
}
