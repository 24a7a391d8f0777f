package price

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"lightning-tournament-backend/internal/common/logger"
)

const satsPerBTC = 100_000_000

// fallbackWarnThreshold is how many consecutive fetch failures are tolerated
// before the oracle starts quoting the configured fallback price.
const fallbackWarnThreshold = 3

// Oracle quotes BTC/USD with a short cache in front of the upstream API and a
// bounded fallback when the upstream stays down. All conversions between sats
// and USD go through here so pricing is consistent across components.
type Oracle struct {
	apiURL      string
	fallbackUSD float64
	cacheTTL    time.Duration
	timeout     time.Duration
	httpClient  *http.Client

	mu        sync.Mutex
	cachedUSD float64
	fetchedAt time.Time
	failures  int
}

func NewOracle(apiURL string, fallbackUSD float64, cacheTTL, timeout time.Duration) *Oracle {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Oracle{
		apiURL:      apiURL,
		fallbackUSD: fallbackUSD,
		cacheTTL:    cacheTTL,
		timeout:     timeout,
		httpClient:  &http.Client{},
	}
}

type coingeckoResponse struct {
	Bitcoin struct {
		USD float64 `json:"usd"`
	} `json:"bitcoin"`
}

// BTCUSD returns the current BTC price in USD.
func (o *Oracle) BTCUSD(ctx context.Context) (float64, error) {
	o.mu.Lock()
	if o.cachedUSD > 0 && time.Since(o.fetchedAt) < o.cacheTTL {
		price := o.cachedUSD
		o.mu.Unlock()
		return price, nil
	}
	o.mu.Unlock()

	price, err := o.fetch(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures++
		logger.Warn().Err(err).Int("consecutive_failures", o.failures).Msg("Price fetch failed")
		// Prefer a stale quote over the static fallback.
		if o.cachedUSD > 0 {
			return o.cachedUSD, nil
		}
		if o.failures >= fallbackWarnThreshold && o.fallbackUSD > 0 {
			logger.Warn().Float64("fallback_usd", o.fallbackUSD).Msg("Price oracle using fallback price")
			return o.fallbackUSD, nil
		}
		return 0, fmt.Errorf("price unavailable: %w", err)
	}
	o.failures = 0
	o.cachedUSD = price
	o.fetchedAt = time.Now()
	return price, nil
}

func (o *Oracle) fetch(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price api http %d", resp.StatusCode)
	}

	var out coingeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Bitcoin.USD <= 0 {
		return 0, fmt.Errorf("price api returned non-positive price")
	}
	return out.Bitcoin.USD, nil
}

// USDToSats converts a USD amount to whole satoshis, rounding up so the house
// never undercharges by a fraction of a sat.
func (o *Oracle) USDToSats(ctx context.Context, usd float64) (int64, error) {
	price, err := o.BTCUSD(ctx)
	if err != nil {
		return 0, err
	}
	return int64(math.Ceil(usd / price * satsPerBTC)), nil
}

// SatsToUSD converts satoshis to USD at the current rate.
func (o *Oracle) SatsToUSD(ctx context.Context, sats int64) (float64, error) {
	price, err := o.BTCUSD(ctx)
	if err != nil {
		return 0, err
	}
	return float64(sats) / satsPerBTC * price, nil
}
