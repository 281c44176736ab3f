package model

// Shapes of the read-only remote API.

// BoardsResponse is GET {base}/boards.json
type BoardsResponse struct {
	Boards []BoardInfo `json:"boards"`
}

// CatalogPage is one element of GET {base}/{board}/catalog.json
type CatalogPage struct {
	Page    int     `json:"page"`
	Threads []*Post `json:"threads"`
}

// ThreadResponse is GET {base}/{board}/thread/{no}.json, Posts[0] is the OP.
type ThreadResponse struct {
	Posts []*Post `json:"posts"`
}
