package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/PaesslerAG/jsonpath"
)

// userAgent is sent with every request; some providers reject the Go default.
const userAgent = "tradesim/1.0"

// jwget performs an HTTP GET request and unmarshals the JSON response into data.
//
// Transport failures and server errors wrap ErrNetwork, a 404 wraps
// ErrInvalidTicker.
func jwget(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %v%v: %v", ErrInvalidTicker, resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: GET %v%v: %v", ErrNetwork, resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err := json.Unmarshal(body, data); err != nil {
		return fmt.Errorf("%w: invalid response: %v", ErrNetwork, err)
	}
	return nil
}

// jget evaluates a JSONPath expression on a decoded document.
// jsonpath is never clear about whether it returns a list of one answer or a
// single answer, so the first element of a list is kept.
func jget(path string, doc any) (any, bool) {
	v, err := jsonpath.Get(path, doc)
	if err != nil || v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		v = list[0]
	}
	return v, v != nil
}

func jfloat(path string, doc any) (float64, bool) {
	v, ok := jget(path, doc)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func jstring(path string, doc any) (string, bool) {
	v, ok := jget(path, doc)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
