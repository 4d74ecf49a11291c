// Package dedupe suppresses retried webhook deliveries by remembering
// provider message ids in a bounded TTL cache. The store's uniqueness
// constraint on provider message ids remains the durable backstop.
package dedupe
