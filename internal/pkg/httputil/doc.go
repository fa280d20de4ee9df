// Package httputil provides shared HTTP response/request helpers for the
// API handlers: JSON envelopes, error responses and request decoding.
package httputil
