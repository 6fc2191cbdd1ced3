// Package validation provides common validation utilities for configuration
// parameters across the chanflow library.
//
// Every constructor that accepts a Config runs these checks up front, so an
// invalid capacity or timeout is reported when the component is built and
// never discovered later while producers and consumers are running.
package validation
