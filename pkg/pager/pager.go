package pager

import (
	"context"
	"fmt"
)

// FetchFunc returns one page of items. pageNumber is 1-indexed.
type FetchFunc[T any] func(ctx context.Context, pageSize, pageNumber int) ([]T, error)

// PageFunc consumes one non-empty page.
type PageFunc[T any] func(page []T) error

// Paginate drives fetch from page 1 until total is exhausted, handing every
// non-empty page to onPage. An empty page stops iteration even before total
// is reached, so a stale count can never loop forever. The pager knows
// nothing about the items it pages over.
func Paginate[T any](ctx context.Context, total int64, pageSize int, fetch FetchFunc[T], onPage PageFunc[T]) error {
	if pageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	for pageNumber := 1; ; pageNumber++ {
		page, err := fetch(ctx, pageSize, pageNumber)
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", pageNumber, err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := onPage(page); err != nil {
			return err
		}
		if int64(pageNumber)*int64(pageSize) >= total {
			return nil
		}
	}
}
