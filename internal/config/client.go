package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Default client configuration values
const (
	DefaultServerURL = "ws://localhost:8082/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
)

// Client holds relayctl configuration
type Client struct {
	// ServerURL is the relay's websocket endpoint
	ServerURL string

	// STUNServer is handed to the probe's peer connections; empty means host
	// candidates only.
	STUNServer string
}

// ClientOptions for loading config with CLI flag overrides
type ClientOptions struct {
	ServerURL  string
	STUNServer string
	NoSTUN     bool
}

// LoadClient applies flag > env > default to every field.
func LoadClient(opts ClientOptions) (*Client, error) {
	serverURL := pick(opts.ServerURL, "RELAY_URL", DefaultServerURL)
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be ws or wss", serverURL)
	}

	stun := pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN)
	if opts.NoSTUN {
		stun = ""
	}

	return &Client{ServerURL: serverURL, STUNServer: stun}, nil
}

// HTTPBase derives the relay's HTTP origin from the websocket URL, e.g.
// wss://relay.example/ws -> https://relay.example
func (c *Client) HTTPBase() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// RoomsURL is the HTTP snapshot endpoint next to the websocket.
func (c *Client) RoomsURL() string {
	return strings.TrimRight(c.HTTPBase(), "/") + "/rooms"
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Client) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}
