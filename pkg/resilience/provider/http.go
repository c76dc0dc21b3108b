package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/resilience/retry"
)

// Config configures an HTTP provider.
type Config struct {
	// FXBaseURL serves /latest?base=X&symbols=Y exchange rate queries.
	FXBaseURL string

	// CryptoBaseURL serves /simple/price?ids=X&vs_currencies=usd queries.
	CryptoBaseURL string

	// Client issues the requests. Defaults to a plain http.Client; attempt
	// deadlines come from the caller's context.
	Client *http.Client

	// Logger receives upstream failures. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig points at the public frankfurter and coingecko APIs.
func DefaultConfig() Config {
	return Config{
		FXBaseURL:     "https://api.frankfurter.app",
		CryptoBaseURL: "https://api.coingecko.com/api/v3",
	}
}

// HTTPProvider fetches quotes over HTTP.
type HTTPProvider struct {
	config Config
}

// NewHTTP creates an HTTP provider.
func NewHTTP(config Config) *HTTPProvider {
	defaults := DefaultConfig()
	if config.FXBaseURL == "" {
		config.FXBaseURL = defaults.FXBaseURL
	}
	if config.CryptoBaseURL == "" {
		config.CryptoBaseURL = defaults.CryptoBaseURL
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &HTTPProvider{config: config}
}

// Fetch returns the current value for key.
func (p *HTTPProvider) Fetch(ctx context.Context, key string) (float64, error) {
	values, err := p.FetchBatch(ctx, []string{key})
	if err != nil {
		return 0, err
	}
	value, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("upstream response missing %q", key)
	}
	return value, nil
}

// FetchBatch resolves keys, with one upstream request per FX base currency
// and a single request for all crypto coins. Keys absent from an otherwise
// healthy response are left out of the result.
func (p *HTTPProvider) FetchBatch(ctx context.Context, keys []string) (map[string]float64, error) {
	fxByBase := make(map[string][]parsedKey)
	var coins []parsedKey
	for _, key := range keys {
		parsed, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		switch parsed.namespace {
		case NamespaceFX:
			fxByBase[parsed.base] = append(fxByBase[parsed.base], parsed)
		case NamespaceCrypto:
			coins = append(coins, parsed)
		}
	}

	values := make(map[string]float64, len(keys))
	for base, pairs := range fxByBase {
		if err := p.fetchFX(ctx, base, pairs, values); err != nil {
			return nil, err
		}
	}
	if len(coins) > 0 {
		if err := p.fetchCrypto(ctx, coins, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// fxResponse is the relevant slice of the exchange rate payload.
type fxResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (p *HTTPProvider) fetchFX(ctx context.Context, base string, pairs []parsedKey, out map[string]float64) error {
	symbols := make([]string, len(pairs))
	for i, pair := range pairs {
		symbols[i] = pair.quote
	}

	query := url.Values{}
	query.Set("base", base)
	query.Set("symbols", strings.Join(symbols, ","))
	endpoint := p.config.FXBaseURL + "/latest?" + query.Encode()

	var payload fxResponse
	if err := p.getJSON(ctx, endpoint, &payload); err != nil {
		return err
	}

	for _, pair := range pairs {
		rate, ok := payload.Rates[pair.quote]
		if !ok {
			p.config.Logger.Warn("fx response missing rate",
				zap.String("base", base), zap.String("symbol", pair.quote))
			continue
		}
		out[NamespaceFX+":"+strings.ToLower(pair.base)+"_"+strings.ToLower(pair.quote)] = rate
	}
	return nil
}

func (p *HTTPProvider) fetchCrypto(ctx context.Context, coins []parsedKey, out map[string]float64) error {
	ids := make([]string, len(coins))
	for i, coin := range coins {
		ids[i] = coin.coin
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	endpoint := p.config.CryptoBaseURL + "/simple/price?" + query.Encode()

	payload := make(map[string]map[string]float64)
	if err := p.getJSON(ctx, endpoint, &payload); err != nil {
		return err
	}

	for _, coin := range coins {
		price, ok := payload[coin.coin]["usd"]
		if !ok {
			p.config.Logger.Warn("price response missing coin",
				zap.String("coin", coin.coin))
			continue
		}
		out[NamespaceCrypto+":"+coin.coin] = price
	}
	return nil
}

// getJSON issues one GET and decodes the body. Connection failures, 5xx and
// 429 responses come back transient; everything else is permanent.
func (p *HTTPProvider) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.config.Client.Do(req)
	if err != nil {
		p.config.Logger.Warn("upstream request failed",
			zap.String("url", endpoint), zap.Error(err))
		return retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("upstream status %d from %s", resp.StatusCode, endpoint)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return retry.Transient(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("malformed upstream response from %s: %w", endpoint, err)
	}

	p.config.Logger.Debug("upstream request",
		zap.String("url", endpoint),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
