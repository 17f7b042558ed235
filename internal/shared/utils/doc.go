// Package utils holds input validation for edited demo sources and content
// hashing for HTTP cache validators.
package utils
