// Package observability records task mutations as JSON Lines events and
// derives activity metrics from them on demand.
package observability
