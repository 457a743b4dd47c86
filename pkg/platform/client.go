// pkg/platform/client.go
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Client talks to the platform's Admin REST API on behalf of one request.
// It is safe for concurrent use; per-shop credentials are passed per call.
type Client struct {
	apiVersion string
	httpc      *http.Client
	baseURL    string // overrides https://<shop> when set (tests, local stubs)
}

func NewClient(apiVersion string) *Client {
	return &Client{
		apiVersion: apiVersion,
		httpc:      &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a fixed origin instead of the shop's
// domain. Used against local stubs.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

func (c *Client) origin(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shop
}

// Product is the subset of platform product fields the app surfaces.
type Product struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
	Status string `json:"status"`
	Image  *struct {
		Src string `json:"src"`
	} `json:"image,omitempty"`
}

var shopDomainRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*\.myshopify\.com$`)

// ValidShopDomain reports whether s looks like a platform shop domain.
// Everything that reaches the platform over HTTPS goes through this first.
func ValidShopDomain(s string) bool {
	return shopDomainRe.MatchString(s)
}

// GetProduct fetches one product by numeric ID using the shop's access token.
func (c *Client) GetProduct(ctx context.Context, shop, accessToken string, productID int64) (*Product, error) {
	u := fmt.Sprintf("%s/admin/api/%s/products/%d.json", c.origin(shop), c.apiVersion, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("product fetch: upstream status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Product Product `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("product fetch: decode: %w", err)
	}
	return &out.Product, nil
}
