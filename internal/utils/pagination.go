// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi and falls back
// to def when the string is empty or not a valid integer. Callers use it for
// optional numeric query parameters (page, page_size, k) where garbage input
// should degrade to the default rather than error.
//
// Example:
//
//	page := utils.AtoiDefault(c.Query("page"), 1)
//	k := utils.AtoiDefault(c.Query("k"), 5)
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
