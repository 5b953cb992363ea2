package models

// InventoryRecord is one persisted product listing discovered on a retailer
// site. DetailsURL is unique within a crawl session.
type InventoryRecord struct {
	Listing      string  `json:"listing"`
	DetailsURL   string  `json:"details_url"`
	ImgURL       string  `json:"img_src"`
	Price        float64 `json:"price"`
	Model        string  `json:"model"`
	Type         string  `json:"type"`
	Manufacturer string  `json:"manufacturer"`
	Retailer     string  `json:"retailer"`
}
