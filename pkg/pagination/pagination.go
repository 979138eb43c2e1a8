package pagination

const (
	// DefaultSize is the standard page size when one is not provided.
	DefaultSize = 25
	// MaxSize caps how many rows any paginated query can request.
	MaxSize = 100
)

// Params holds page pagination inputs from controllers or services.
type Params struct {
	Page int
	Size int
}

// Normalize enforces the configured defaults and maximum page size.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Size
}

// Limit returns the normalized page size.
func (p Params) Limit() int {
	return p.Normalize().Size
}

// PageResult describes one page of results alongside its request parameters.
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// NewPageResult assembles the envelope returned by list operations.
func NewPageResult[T any](items []T, params Params, total int64) PageResult[T] {
	n := params.Normalize()
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items: items,
		Page:  n.Page,
		Size:  n.Size,
		Total: total,
	}
}
