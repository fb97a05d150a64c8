// Package scoring provides the remote scoring client: one capability
// interface (dense embed, sparse embed, rerank) with two interchangeable
// transports selected at construction time, a truncation policy bounding
// request sizes, and an optional circuit breaker decorator.
package scoring
