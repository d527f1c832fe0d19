package domain

import (
	"strconv"
	"strings"
)

// ParsePriceNano parses an integer minor-unit price.
// Venues are not fully trustworthy: anything unparseable or negative yields 0.
func ParsePriceNano(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// NanoPerUnit is the number of minor units in one currency unit.
const NanoPerUnit = 1_000_000_000

// FormatNano renders a minor-unit amount as a decimal unit string.
func FormatNano(nano int64) string {
	return strconv.FormatFloat(float64(nano)/NanoPerUnit, 'f', -1, 64)
}

// CollectionKey derives the collection lookup key from an item display name.
// Gift names look like "Plush Pepe #1234"; the key is the lowercased part before '#'.
func CollectionKey(name string) string {
	if i := strings.IndexByte(name, '#'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimSpace(name))
}
