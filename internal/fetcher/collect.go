package fetcher

import (
	"context"
	"fmt"
)

// ListFunc fetches the page identified by token; the first call gets "".
type ListFunc[T any] func(ctx context.Context, token string) (Page[T], error)

// Collect walks every page of a remote collection, calling each for every
// item in order as its page arrives. It stops when a page carries no
// continuation token, when list or each fails, or when a token repeats.
func Collect[T any](ctx context.Context, list ListFunc[T], each func(T) error) error {
	seen := make(map[string]struct{})
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := list(ctx, token)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := each(item); err != nil {
				return err
			}
		}
		next := page.NextPageToken
		if next == "" {
			return nil
		}
		if _, dup := seen[next]; dup {
			return fmt.Errorf("%w: %q", ErrPaginationLoop, next)
		}
		seen[next] = struct{}{}
		token = next
	}
}

// CollectAll gathers every item of a remote collection into one slice.
func CollectAll[T any](ctx context.Context, list ListFunc[T]) ([]T, error) {
	var all []T
	err := Collect(ctx, list, func(item T) error {
		all = append(all, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}
