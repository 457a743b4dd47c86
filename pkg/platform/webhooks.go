// pkg/platform/webhooks.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// TopicAppUninstalled is the revocation event every install subscribes to.
const TopicAppUninstalled = "app/uninstalled"

// ErrProductNotFound means the selected product no longer exists upstream.
var ErrProductNotFound = errors.New("product not found")

// ErrRegistrationFailed wraps webhook subscription failures. Callers log it
// and carry on: a shop stays authorized even if revocation notifications
// cannot later be delivered.
var ErrRegistrationFailed = errors.New("webhook registration failed")

// Subscription is one webhook topic to register after OAuth completes.
type Subscription struct {
	Topic string `yaml:"topic" json:"topic"`
	Path  string `yaml:"path" json:"path"`
}

// WebhookManifest is the optional YAML file listing extra subscriptions
// beyond the mandatory uninstall topic.
type WebhookManifest struct {
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// LoadWebhookManifest reads the manifest at path. An empty path yields just
// the uninstall subscription; a listed uninstall topic is not duplicated.
func LoadWebhookManifest(path string) ([]Subscription, error) {
	subs := []Subscription{{Topic: TopicAppUninstalled, Path: "/webhooks"}}
	if path == "" {
		return subs, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("webhook manifest: %w", err)
	}
	var m WebhookManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("webhook manifest: %w", err)
	}
	for _, s := range m.Subscriptions {
		if s.Topic == "" || s.Topic == TopicAppUninstalled {
			continue
		}
		if s.Path == "" {
			s.Path = "/webhooks"
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// RegisterWebhook subscribes the given address to a topic using the shop's
// access token as authorization.
func (c *Client) RegisterWebhook(ctx context.Context, shop, accessToken, topic, address string) error {
	body, err := json.Marshal(map[string]any{
		"webhook": map[string]any{
			"topic":   topic,
			"address": address,
			"format":  "json",
		},
	})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/admin/api/%s/webhooks.json", c.origin(shop), c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: status %d: %s", ErrRegistrationFailed, resp.StatusCode, detail)
	}
	return nil
}
