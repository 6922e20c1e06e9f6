// Package utils holds small helpers shared by the HTTP and CLI layers.
package utils

import "strconv"

// AtoiDefault parses s, returning def when s is empty or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes page and page size query values: page is at least 1,
// and size falls back to def and is capped at max.
func ClampPage(pageRaw, sizeRaw string, def, max int) (page, size int) {
	page = AtoiDefault(pageRaw, 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(sizeRaw, def)
	if size < 1 {
		size = 1
	}
	if size > max {
		size = max
	}
	return page, size
}
