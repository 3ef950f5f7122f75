package services

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 50
)

// Paginated is the list envelope returned by every paginated operation.
type Paginated[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// NormalizePage clamps page to >= 1 and limit to [1, MaxPageLimit], defaulting to DefaultPageLimit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func newPaginated[T any](data []T, total int64, page, limit int) *Paginated[T] {
	if data == nil {
		data = []T{}
	}
	return &Paginated[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: calculateTotalPages(total, limit),
	}
}

// calculateTotalPages never reports fewer than one page.
func calculateTotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
