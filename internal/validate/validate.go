package validate

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/trydiscs/inventory-crawler/internal/catalog"
	"github.com/trydiscs/inventory-crawler/internal/harvest"
)

// ValidatedListing is a listing candidate whose text matched a known catalog
// model for the target manufacturer. It keeps its position and source order
// so association can run geometrically afterwards.
type ValidatedListing struct {
	Listing      string
	DetailsURL   string
	Model        string
	PrimaryUse   string
	Manufacturer string
	Retailer     string
	Position     harvest.Position
	SourceOrder  int
}

var (
	anyLetter  = regexp.MustCompile(`[a-zA-Z]`)
	whitespace = regexp.MustCompile(`\s+`)
	// Keeps word characters, dots, path separators, whitespace, and the
	// common dash variants. Mirrors the in-page harvest normalization.
	abnormal = regexp.MustCompile(`[^\w./\s\x{2013}\x{2014}\x{2212}-]`)
)

// NormalizeText collapses whitespace, strips abnormal characters, and trims.
func NormalizeText(text string) string {
	text = whitespace.ReplaceAllString(text, " ")
	text = abnormal.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Validator filters raw listing candidates down to ones that match the
// target manufacturer's catalog.
type Validator struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func New(c *catalog.Catalog) *Validator {
	return &Validator{
		catalog: c,
		logger:  slog.Default().With("component", "validator"),
	}
}

// Validate narrows candidates to listings of the target manufacturer's known
// models. Candidates with unresolvable hrefs, no letters, a foreign
// manufacturer name, or no catalog match are dropped; a dropped candidate is
// logged, never an error.
func (v *Validator) Validate(candidates []harvest.ListingCandidate, manufacturer, baseURL string) []ValidatedListing {
	retailer := retailerKey(baseURL)
	models := v.catalog.ModelsFor(manufacturer)
	if len(models) == 0 {
		v.logger.Warn("no catalog entries for manufacturer", "manufacturer", manufacturer)
		return nil
	}

	var validated []ValidatedListing
	rejected := 0

	for _, candidate := range candidates {
		detailsURL, err := resolveURL(candidate.Href, baseURL)
		if err != nil {
			continue
		}

		text := NormalizeText(candidate.Text)
		if !anyLetter.MatchString(text) {
			continue
		}

		lower := strings.ToLower(text)

		if v.containsForeignManufacturer(lower, manufacturer) {
			rejected++
			continue
		}

		model, primaryUse := longestModelMatch(models, lower)
		if model == "" {
			rejected++
			continue
		}

		validated = append(validated, ValidatedListing{
			Listing:      text,
			DetailsURL:   detailsURL,
			Model:        model,
			PrimaryUse:   primaryUse,
			Manufacturer: manufacturer,
			Retailer:     retailer,
			Position:     candidate.Position,
			SourceOrder:  candidate.SourceOrder,
		})
	}

	v.logger.Debug("validated listings",
		"manufacturer", manufacturer,
		"accepted", len(validated),
		"rejected", rejected,
	)

	return validated
}

// containsForeignManufacturer reports whether the text mentions a known
// manufacturer other than the target as a whole word. This prevents a
// competitor's product with the same model name being misattributed.
func (v *Validator) containsForeignManufacturer(lowerText, target string) bool {
	targetLower := strings.ToLower(target)
	for _, name := range v.catalog.Manufacturers() {
		nameLower := strings.ToLower(name)
		if nameLower == targetLower {
			continue
		}
		if wholeWord(nameLower).MatchString(lowerText) {
			return true
		}
	}
	return false
}

// longestModelMatch tests every model name as a whole word and returns the
// longest matching name. With nested names ("Aviar" inside "Pro Aviar") the
// most specific entry wins.
func longestModelMatch(models []catalog.Model, lowerText string) (string, string) {
	var best catalog.Model
	for _, model := range models {
		if !wholeWord(strings.ToLower(model.Name)).MatchString(lowerText) {
			continue
		}
		if len(model.Name) > len(best.Name) {
			best = model
		}
	}
	return best.Name, best.PrimaryUse
}

func wholeWord(name string) *regexp.Regexp {
	return regexp.MustCompile(`(^|\s)` + regexp.QuoteMeta(name) + `(\s|$)`)
}

func resolveURL(href, base string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("failed to parse href: %w", err)
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Host == "" {
		return "", fmt.Errorf("href %q resolved to no host", href)
	}
	return resolved.String(), nil
}

func retailerKey(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	return u.Hostname()
}
