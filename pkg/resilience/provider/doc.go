// Package provider fetches live values from upstream quote APIs.
//
// A Provider resolves namespaced keys to float values. Two namespaces are
// understood by the bundled HTTP provider:
//
//	fx:gbp_usd      exchange rate, base_quote currency pair
//	crypto:bitcoin  coin spot price in USD
//
// Errors carry their retry classification. Connection failures, timeouts,
// HTTP 5xx and 429 responses come back wrapped as transient so a retry
// policy will try again; malformed payloads, unknown keys and other 4xx
// responses are permanent and fail immediately.
package provider
