package request

type PaginatedRequest struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=100"`
}

func NewPaginatedRequest(page, perPage int) PaginatedRequest {
	p := PaginatedRequest{Page: page, PerPage: perPage}
	if p.Page < 1 {
		p.Page = 1
	}
	p.PerPage = p.Limit()
	return p
}

func (p PaginatedRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

func (p PaginatedRequest) Limit() int {
	if p.PerPage < 1 {
		return 10
	}
	if p.PerPage > 100 {
		return 100
	}
	return p.PerPage
}
