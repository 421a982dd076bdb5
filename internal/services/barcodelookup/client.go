package barcodelookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"cellar/internal/config"
	"cellar/internal/services"
)

const (
	component          = "barcodelookup"
	defaultTimeout     = 10 * time.Second
	maxNegativeTTL     = 5 * time.Minute
	maxResponseBytes   = 1 << 20
	errorSnippetLength = 200
)

// ErrNoProducts indicates the catalog answered but knows nothing about the barcode.
var ErrNoProducts = errors.New("no products for barcode")

// Config captures the provider endpoint and credentials.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ConfigFrom maps application configuration onto provider settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		APIKey:   cfg.BarcodeLookup.APIKey,
		BaseURL:  cfg.BarcodeLookup.BaseURL,
		Timeout:  time.Duration(cfg.BarcodeLookup.TimeoutSeconds) * time.Second,
		CacheTTL: time.Duration(cfg.BarcodeLookup.CacheTTLMinutes) * time.Minute,
	}
}

// Product is the subset of a catalog entry used by enrichment.
type Product struct {
	Barcode      string `json:"barcode_number"`
	Title        string `json:"title"`
	Brand        string `json:"brand"`
	ProductName  string `json:"product_name"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`
}

type lookupResponse struct {
	Products []Product `json:"products"`
}

// Client performs catalog lookups.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	cache       *cache.Cache
	negativeTTL time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client. A zero CacheTTL disables caching.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.CacheTTL > 0 {
		client.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
		client.negativeTTL = min(cfg.CacheTTL, maxNegativeTTL)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Lookup returns the first catalog product for barcode.
func (c *Client) Lookup(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Product{}, services.Wrap(services.ErrValidation, component, "lookup", "barcode required", nil)
	}
	if !c.Configured() {
		return Product{}, services.Wrap(services.ErrProviderUnavailable, component, "lookup", "api key not configured", nil)
	}

	if c.cache != nil {
		if cached, found := c.cache.Get(barcode); found {
			if product, ok := cached.(Product); ok {
				return product, nil
			}
			return Product{}, noProductsError(barcode)
		}
	}

	product, err := c.fetch(ctx, barcode)
	switch {
	case err == nil:
		if c.cache != nil {
			c.cache.Set(barcode, product, cache.DefaultExpiration)
		}
		return product, nil
	case errors.Is(err, ErrNoProducts):
		if c.cache != nil {
			c.cache.Set(barcode, struct{}{}, c.negativeTTL)
		}
	}
	return Product{}, err
}

func (c *Client) fetch(ctx context.Context, barcode string) (Product, error) {
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return Product{}, services.Wrap(services.ErrProviderError, component, "lookup", "invalid base url", err)
	}
	query := endpoint.Query()
	query.Set("barcode", barcode)
	query.Set("key", c.cfg.APIKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Product{}, services.Wrap(services.ErrProviderError, component, "lookup", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL including the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return Product{}, services.Wrap(services.ErrProviderError, component, "lookup",
			fmt.Sprintf("request failed (timeout=%s)", c.cfg.Timeout), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Product{}, services.Wrap(services.ErrProviderError, component, "lookup", "read body", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return Product{}, noProductsError(barcode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Product{}, services.Wrap(services.ErrProviderError, component, "lookup",
			fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(body)), nil)
	}

	var decoded lookupResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Product{}, services.Wrap(services.ErrProviderError, component, "lookup", "decode response", err)
	}
	if len(decoded.Products) == 0 {
		return Product{}, noProductsError(barcode)
	}
	product := decoded.Products[0]
	product.Brand = strings.TrimSpace(product.Brand)
	product.ProductName = strings.TrimSpace(product.ProductName)
	return product, nil
}

func noProductsError(barcode string) error {
	return services.Wrap(services.ErrProviderError, component, "lookup", "barcode "+barcode, ErrNoProducts)
}

func snippet(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if len(text) > errorSnippetLength {
		return text[:errorSnippetLength] + "..."
	}
	return text
}
