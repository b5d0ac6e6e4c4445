// Package sheets provides tools for delimited text documents: tokenizing a
// single line, paged previews, numeric column statistics and conversion to
// JSON, YAML or TOML.
package sheets
