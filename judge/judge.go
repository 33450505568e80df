package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/corpix/uarand"
	"github.com/rs/zerolog"

	"vetproxy/logger"
	"vetproxy/proxy"
)

const defaultEchoURL = "http://httpbin.org/headers"

// echoResponse mirrors the httpbin.org/headers payload: the request
// headers as the echo service received them
type echoResponse struct {
	Headers map[string]string `json:"headers"`
}

// Judge classifies how much a proxy reveals about its client by asking a
// header-echo service what the request looked like from the outside. The
// classification is a best-effort heuristic, not a security property.
type Judge struct {
	echoURL string
	log     zerolog.Logger
}

// New creates a judge against the default echo service
func New() *Judge {
	return &Judge{
		echoURL: defaultEchoURL,
		log:     logger.WithComponent("judge"),
	}
}

// SetEchoURL replaces the header-echo endpoint
func (j *Judge) SetEchoURL(echoURL string) {
	j.echoURL = echoURL
}

// Classify probes the echo service through client, which must already
// route via the candidate proxy. Any failure yields PrivacyUnknown.
func (j *Judge) Classify(ctx context.Context, client *http.Client) proxy.Privacy {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.echoURL, nil)
	if err != nil {
		return proxy.PrivacyUnknown
	}
	req.Header.Set("User-Agent", uarand.GetRandom())

	resp, err := client.Do(req)
	if err != nil {
		j.log.Debug().Err(err).Msg("anonymity probe failed")
		return proxy.PrivacyUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return proxy.PrivacyUnknown
	}

	var echo echoResponse
	if err := json.NewDecoder(resp.Body).Decode(&echo); err != nil {
		return proxy.PrivacyUnknown
	}

	return classifyHeaders(echo.Headers)
}

// classifyHeaders applies the forwarding-header heuristic: a proxy that
// leaks neither a Via chain nor the client address is Elite, one that
// flags itself but hides the client is Anonymous, anything else passes
// the client through and is Transparent.
func classifyHeaders(headers map[string]string) proxy.Privacy {
	var via, forwardedFor string
	for name, value := range headers {
		switch strings.ToLower(name) {
		case "via":
			via = value
		case "x-forwarded-for":
			forwardedFor = value
		}
	}

	switch {
	case via == "" && forwardedFor == "":
		return proxy.PrivacyElite
	case strings.Contains(strings.ToLower(via), "proxy") || forwardedFor != "":
		return proxy.PrivacyAnonymous
	default:
		return proxy.PrivacyTransparent
	}
}
