package model

// Instrument is one row of the NSE universe list.
type Instrument struct {
	Symbol   string `json:"symbol"`
	ISIN     string `json:"isin"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Series   string `json:"series"` // EQ, BE, ...
}

// Key returns the Upstox instrument key: "NSE_EQ|<ISIN>".
func (i *Instrument) Key() string {
	return "NSE_EQ|" + i.ISIN
}
