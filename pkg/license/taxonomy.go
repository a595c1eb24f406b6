package license

// Category classifies a license identifier. The classification is a
// fixed external taxonomy; the evaluator never computes it.
type Category string

const (
	CategoryPermissive Category = "permissive"
	CategoryCopyleft   Category = "copyleft"
	CategoryOther      Category = "other"
)

// Taxonomy maps license identifiers to their category. Unknown
// identifiers classify as CategoryOther.
type Taxonomy map[string]Category

// Classify returns the category for the identifier.
func (t Taxonomy) Classify(id string) Category {
	if c, ok := t[id]; ok {
		return c
	}
	return CategoryOther
}

// DefaultTaxonomy returns the built-in classification table covering
// the common SPDX identifiers.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		"MIT":          CategoryPermissive,
		"Apache-2.0":   CategoryPermissive,
		"BSD-2-Clause": CategoryPermissive,
		"BSD-3-Clause": CategoryPermissive,
		"ISC":          CategoryPermissive,
		"Zlib":         CategoryPermissive,
		"0BSD":         CategoryPermissive,
		"Unlicense":    CategoryPermissive,
		"CC0-1.0":      CategoryPermissive,
		"Unicode-DFS-2016": CategoryPermissive,
		"OpenSSL":          CategoryPermissive,

		"GPL-2.0":      CategoryCopyleft,
		"GPL-2.0-only": CategoryCopyleft,
		"GPL-3.0":      CategoryCopyleft,
		"GPL-3.0-only": CategoryCopyleft,
		"AGPL-3.0":     CategoryCopyleft,
		"LGPL-2.1":     CategoryCopyleft,
		"LGPL-3.0":     CategoryCopyleft,
		"MPL-2.0":      CategoryCopyleft,
		"EPL-1.0":      CategoryCopyleft,
		"EPL-2.0":      CategoryCopyleft,
		"CDDL-1.0":     CategoryCopyleft,
	}
}
