// Package pagination enumerates the EPD catalog through its cursor-based
// search endpoint.
//
// The search endpoint reports totalCount, pageSize and startIndex with every
// page. The next cursor is always derived from the page just received
// (startIndex + pageSize), so pages are fetched sequentially.
//
// Example usage:
//
//	pager := pagination.NewPager(apiClient.WithToken(tok), pagination.DefaultConfig())
//	listing, err := pager.FetchAll(ctx)
//
// The pager:
//   - Fails the run when the first page cannot be fetched
//   - Returns the descriptors gathered so far when a later page fails,
//     flagging the listing as truncated and logging a warning
//   - Preserves discovery order and performs no deduplication
package pagination
