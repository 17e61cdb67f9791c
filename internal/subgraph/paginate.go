package subgraph

import (
	"context"
	"fmt"
)

// maxPages guards against a subgraph that keeps returning full pages.
const maxPages = 100_000

// Paginate calls fetch with skip = 0, pageSize, 2*pageSize, ... until a page
// comes back short. fetch returns the number of rows it received.
func Paginate(ctx context.Context, pageSize int, fetch func(ctx context.Context, skip int) (int, error)) (int, error) {
	if pageSize <= 0 {
		return 0, fmt.Errorf("page size must be greater than zero")
	}

	total := 0
	for page := 0; page < maxPages; page++ {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := fetch(ctx, page*pageSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < pageSize {
			return total, nil
		}
	}
	return total, fmt.Errorf("pagination exceeded %d pages", maxPages)
}
