package dto

// FilingsResponse is the submissions document from the filings provider.
// The recent filings arrive in parallel arrays indexed together.
type FilingsResponse struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent RecentFilings `json:"recent"`
	} `json:"filings"`
}

// RecentFilings holds the parallel arrays of the most recent filings.
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// HasTicker reports whether the submissions document lists the given
// (already upper-cased) ticker.
func (r FilingsResponse) HasTicker(ticker string) bool {
	for _, t := range r.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}
