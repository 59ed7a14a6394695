package models

// Query is a single natural-language question. TopK of zero means the
// configured default.
type Query struct {
	Text string `json:"query"`
	TopK int    `json:"top_k,omitempty"`
}

// Response is the answer produced for a query.
type Response struct {
	Query  string `json:"query"`
	Answer string `json:"response"`
}
