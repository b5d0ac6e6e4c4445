// Package search finds documents by fuzzy name match and by case-insensitive
// content match across granted folders.
package search
