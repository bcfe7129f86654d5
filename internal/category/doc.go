// Package category holds the static category catalog: the fixed set of
// classification targets with their keyword sets, display colors and
// remote label names. The catalog is constructed once at startup and is
// read-only afterwards.
package category
