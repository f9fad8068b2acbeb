// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

// NormalizePage clamps pagination input to sane values: pages below 1
// become 1, a non-positive pageSize becomes def, and a pageSize above max
// is capped at max (when max > 0).
//
// Example:
//
//	page, size := utils.NormalizePage(0, 0, 20, 100)   // 1, 20
//	page, size = utils.NormalizePage(3, 500, 20, 100)  // 3, 100
func NormalizePage(page, pageSize, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = def
	}
	if max > 0 && pageSize > max {
		pageSize = max
	}
	return page, pageSize
}

// Offset converts a 1-based page and page size into a row offset.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}
