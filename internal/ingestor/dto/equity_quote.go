package dto

// EquityQuoteResponse is the envelope returned by the equity quote provider.
// An empty Result list is the provider's well-formed "no data" answer.
type EquityQuoteResponse struct {
	QuoteResponse struct {
		Result []EquityQuote     `json:"result"`
		Error  *EquityQuoteError `json:"error"`
	} `json:"quoteResponse"`
}

// EquityQuote carries the quote fields actually consumed. Numeric fields are
// decoded as interface{} because the provider occasionally returns quoted
// numbers or the string "None"; every one is passed through value coercion.
type EquityQuote struct {
	Symbol             string      `json:"symbol"`
	LongName           string      `json:"longName"`
	RegularMarketPrice interface{} `json:"regularMarketPrice"`
	MarketCap          interface{} `json:"marketCap"`
	TrailingPE         interface{} `json:"trailingPE"`
	ForwardPE          interface{} `json:"forwardPE"`
	Beta               interface{} `json:"beta"`
	FiftyTwoWeekHigh   interface{} `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    interface{} `json:"fiftyTwoWeekLow"`
	FullTimeEmployees  interface{} `json:"fullTimeEmployees"`
	Currency           string      `json:"currency"`
}

// EquityQuoteError is the provider's in-band error object.
type EquityQuoteError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
