// Package validation provides common validation utilities for configuration
// parameters and fetched values across the rateshield library.
//
// This package offers reusable validation functions that help ensure
// consistent error messages and reduce boilerplate code in constructors
// and in the fetcher's value sanity checks.
package validation
