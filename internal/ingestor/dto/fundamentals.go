package dto

// FundamentalsOverview is the company overview document from the
// fundamentals provider. Every numeric field arrives as a string and may be
// the literal "None" instead of absent, so nothing here is typed as a
// number.
type FundamentalsOverview struct {
	Symbol                     string `json:"Symbol"`
	Name                       string `json:"Name"`
	Sector                     string `json:"Sector"`
	CIK                        string `json:"CIK"`
	Currency                   string `json:"Currency"`
	LatestQuarter              string `json:"LatestQuarter"`
	MarketCapitalization       string `json:"MarketCapitalization"`
	PERatio                    string `json:"PERatio"`
	PEGRatio                   string `json:"PEGRatio"`
	DividendYield              string `json:"DividendYield"`
	EPS                        string `json:"EPS"`
	RevenueTTM                 string `json:"RevenueTTM"`
	GrossProfitMargin          string `json:"GrossProfitMargin"`
	OperatingMarginTTM         string `json:"OperatingMarginTTM"`
	ProfitMargin               string `json:"ProfitMargin"`
	ReturnOnAssetsTTM          string `json:"ReturnOnAssetsTTM"`
	ReturnOnEquityTTM          string `json:"ReturnOnEquityTTM"`
	QuarterlyRevenueGrowthYOY  string `json:"QuarterlyRevenueGrowthYOY"`
	QuarterlyEarningsGrowthYOY string `json:"QuarterlyEarningsGrowthYOY"`
	AnalystTargetPrice         string `json:"AnalystTargetPrice"`

	// Note and Information replace the whole payload when the provider is
	// throttling the API key.
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// IsEmpty reports whether the provider returned the empty-object "no data"
// response.
func (o FundamentalsOverview) IsEmpty() bool {
	return o.Symbol == "" && o.Name == "" && o.Note == "" && o.Information == ""
}
