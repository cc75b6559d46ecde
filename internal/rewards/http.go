// Package rewards collects claimable and accruing reward tokens for a wallet
// from Merkl and the Morpho rewards service.
package rewards

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"yield-monitor-go/internal/metrics"
)

const maxBody = 4 << 20

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// getJSON fetches url and returns the parsed body. Non-2xx responses and
// invalid JSON are errors.
func getJSON(ctx context.Context, hc *http.Client, source, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", "https://app.morpho.org")
	req.Header.Set("Referer", "https://app.morpho.org/")

	res, err := fetch(hc, req)
	metrics.RecordUpstream(source, err)
	return res, err
}

func fetch(hc *http.Client, req *http.Request) (gjson.Result, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, errors.Errorf("HTTP error! status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "read body")
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("invalid JSON response")
	}
	return gjson.ParseBytes(body), nil
}
