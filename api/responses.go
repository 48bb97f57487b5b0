package api

import "github.com/xraph/warrant/catalog"

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

// CatalogResponse lists the permission catalog grouped for the UI matrix.
type CatalogResponse struct {
	Modules []string        `json:"modules" description:"Distinct module names, sorted"`
	Entries []catalog.Entry `json:"entries" description:"Catalog entries"`
}
