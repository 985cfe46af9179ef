// Package utils holds small helpers for query parsing and pagination that
// carry no domain logic.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageParams turns raw page and page_size query values into a 1-based page
// and a size within [1, maxSize]. Missing or invalid sizes use defSize.
func PageParams(page, size string, defSize, maxSize int) (int, int) {
	p := max(AtoiDefault(page, 1), 1)
	s := min(max(AtoiDefault(size, defSize), 1), maxSize)
	return p, s
}

// TotalPages is the number of pages of size needed for total items.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
