// Package httpx provides a resilient HTTP client adapter
// for the hyx library.
//
// Client wraps a standard http.Client with an hyx resilience
// policy and a user-provided status code classifier that maps
// HTTP response codes to transient or permanent errors.
package httpx
