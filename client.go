package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Device talks to the window's HTTP API.
type Device struct {
	apiroute string
	method   string
	username string
	password string

	httpClient *http.Client
	logger     *slog.Logger
}

func NewDevice(cfg *Config, logger *slog.Logger) *Device {
	return &Device{
		apiroute: strings.TrimSuffix(cfg.APIRoute, "/"),
		method:   cfg.HTTPMethod,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout(),
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: logger,
	}
}

// Status fetches the full device state with GET <apiroute>/status.
func (d *Device) Status(ctx context.Context) (Status, error) {
	u := d.apiroute + "/status"
	d.logger.Debug("Getting status.", "url", u)

	body, err := d.do(ctx, http.MethodGet, u)
	if err != nil {
		return Status{}, err
	}

	d.logger.Debug("Device response.", "body", string(body))

	var s Status
	if err := json.Unmarshal(body, &s); err != nil {
		return Status{}, &ParseError{What: "status", Input: string(body), Err: err}
	}

	return s, nil
}

// Command sends <method> <apiroute>/<name>?value=<value>. The response body
// is ignored.
func (d *Device) Command(ctx context.Context, name, value string) error {
	u := d.apiroute + "/" + name + "?" + url.Values{"value": {value}}.Encode()
	d.logger.Debug("Sending command.", "url", u, "method", d.method)

	_, err := d.do(ctx, d.method, u)
	return err
}

func (d *Device) do(ctx context.Context, method, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, &TransportError{Op: method, URL: u, Err: err}
	}

	if d.username != "" && d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method, URL: u, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		d.logger.Debug("Device returned error status.", "url", u, "status", resp.StatusCode)
	}

	return body, nil
}
