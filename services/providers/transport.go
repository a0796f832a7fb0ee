package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// maxErrorDetail caps how much of an error body is echoed into an Outcome.
const maxErrorDetail = 500

// PostJSON marshals body, POSTs it to url and returns the status code and
// raw response body. Transport faults come back as a transport ProviderError.
func PostJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any) (int, []byte, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, NewProviderError(provider, KindInvocation, "Failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, NewProviderError(provider, KindInvocation, "Failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, RequestFailed(provider, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp.StatusCode, nil, NewProviderError(provider, KindTransport, "Failed to read response", httpResp.StatusCode, true, err)
	}
	return httpResp.StatusCode, respBody, nil
}

// ErrorDetail extracts a readable message from an error payload. It knows
// the {"error": "..."} and {"error": {"message": "..."}} shapes and falls
// back to the truncated raw body.
func ErrorDetail(body []byte) string {
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	detail := string(bytes.TrimSpace(body))
	if len(detail) > maxErrorDetail {
		detail = fmt.Sprintf("%s...", truncate(detail, maxErrorDetail))
	}
	return detail
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsSuccessStatus reports a 2xx status.
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
