package actions

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joachimaross/zeekyflow/internal/registry"
)

// Default collaborators for the built-in action catalog. ai-chat and email
// stand in for the real AI and mail integrations; api performs a genuine
// outbound HTTP call. All of them honor the executor-scoped context.

const maxAPIResponseBytes = 4 << 10

// RegisterDefaults loads the built-in actions into the registry.
func RegisterDefaults(reg *registry.Registry) {
	reg.RegisterAction("ai-chat", registry.ComponentInfo{
		Label:        "AI Chat",
		Icon:         "fas fa-robot",
		Description:  "Send message to AI and get response",
		ConfigFields: []string{"prompt", "model", "temperature"},
		Produces:     "ai_response",
	}, AIChat)

	reg.RegisterAction("email", registry.ComponentInfo{
		Label:        "Send Email",
		Icon:         "fas fa-envelope",
		Description:  "Send email notification",
		ConfigFields: []string{"to", "subject", "body"},
		Produces:     "email_result",
	}, Email)

	reg.RegisterAction("api", registry.ComponentInfo{
		Label:        "API Call",
		Icon:         "fas fa-code",
		Description:  "Make HTTP API request",
		ConfigFields: []string{"url", "method", "headers", "body"},
		Produces:     "api_response",
	}, APICall)
}

// AIChat simulates an AI chat collaborator.
func AIChat(ctx context.Context, config map[string]string) (string, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	prompt := config["prompt"]
	if prompt == "" {
		return "", fmt.Errorf("ai-chat requires a prompt")
	}
	return fmt.Sprintf("AI Response to: %q", prompt), nil
}

// Email simulates an email-sending collaborator.
func Email(ctx context.Context, config map[string]string) (string, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	to := config["to"]
	if to == "" {
		to = "user@example.com"
	}
	return fmt.Sprintf("Email sent to %s with subject %q", to, config["subject"]), nil
}

// APICall performs an outbound HTTP request described by the configuration.
// headers is a comma list of "Name: Value" pairs.
func APICall(ctx context.Context, config map[string]string) (string, error) {
	url := config["url"]
	if url == "" {
		return "", fmt.Errorf("api requires a url")
	}
	method := strings.ToUpper(config["method"])
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if b := config["body"]; b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", err
	}
	for _, header := range strings.Split(config["headers"], ",") {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			continue
		}
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("api call to %s returned %s", url, resp.Status)
	}
	return fmt.Sprintf("%s %s", resp.Status, strings.TrimSpace(string(payload))), nil
}
