// Package cronwatch runs scheduled commands and reports their output.
package cronwatch

// Version is the cronwatch release version.
const Version = "0.1.0"
