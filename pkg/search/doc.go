// Package search maintains a term index over entity rows. The index
// lives in an ordinary table written through the same executor as the
// entities it covers, so it needs no store-side text extensions.
package search
