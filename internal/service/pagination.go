package service

// MaxPageLimit caps every listing.
const MaxPageLimit = 100

// PageRequest is a 1-based page with a size.
type PageRequest struct {
	Page  int
	Limit int
}

// Pagination is returned alongside each page of results.
type Pagination struct {
	Total       int `json:"total"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Limit       int `json:"limit"`
}

// normalize clamps the page to >= 1 and the limit to [1, MaxPageLimit],
// replacing a missing limit with def. When resetOutOfRange is set an
// oversized limit falls back to def instead of the cap.
func (p PageRequest) normalize(def int, resetOutOfRange bool) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit < 1:
		p.Limit = def
	case p.Limit > MaxPageLimit && resetOutOfRange:
		p.Limit = def
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

func newPagination(total int, p PageRequest) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Total: total, TotalPages: pages, CurrentPage: p.Page, Limit: p.Limit}
}
