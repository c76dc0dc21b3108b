package provider

import (
	"context"
	"fmt"
	"strings"
)

// Provider resolves keys to live upstream values.
type Provider interface {
	// Fetch returns the current value for a single key.
	Fetch(ctx context.Context, key string) (float64, error)

	// FetchBatch resolves several keys, batching upstream calls where the
	// API allows it. The result maps each successfully resolved key; keys
	// the upstream does not know are omitted rather than failing the batch.
	FetchBatch(ctx context.Context, keys []string) (map[string]float64, error)
}

// Key namespaces understood by the HTTP provider.
const (
	NamespaceFX     = "fx"
	NamespaceCrypto = "crypto"
)

// parsedKey is a key split into its namespace and payload.
type parsedKey struct {
	namespace string
	// fx only
	base  string
	quote string
	// crypto only
	coin string
}

func parseKey(key string) (parsedKey, error) {
	namespace, rest, found := strings.Cut(key, ":")
	if !found || rest == "" {
		return parsedKey{}, fmt.Errorf("malformed key %q: want namespace:value", key)
	}

	switch namespace {
	case NamespaceFX:
		base, quote, found := strings.Cut(rest, "_")
		if !found || base == "" || quote == "" {
			return parsedKey{}, fmt.Errorf("malformed fx key %q: want fx:base_quote", key)
		}
		return parsedKey{
			namespace: NamespaceFX,
			base:      strings.ToUpper(base),
			quote:     strings.ToUpper(quote),
		}, nil
	case NamespaceCrypto:
		return parsedKey{namespace: NamespaceCrypto, coin: rest}, nil
	default:
		return parsedKey{}, fmt.Errorf("unknown key namespace %q", namespace)
	}
}
