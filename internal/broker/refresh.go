package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/loopcrm/edgegate/internal/faults"
)

// RefreshResponse is the upstream auth service's token rotation reply.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	ExpiresAt    int64  `json:"expiresAt"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshClient rotates access tokens against the upstream auth endpoint.
type RefreshClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRefreshClient(baseURL string, httpClient *http.Client) *RefreshClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RefreshClient{baseURL: baseURL, httpClient: httpClient}
}

// Refresh exchanges refreshToken for a fresh token pair. A non-2xx reply
// is an Unauthorized fault: the session must re-authenticate, there is no
// fallback to the stale token.
func (r *RefreshClient) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	var out RefreshResponse
	if refreshToken == "" {
		return out, faults.New(faults.KindUnauthorized, "session has no refresh token")
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return out, faults.Wrap(faults.KindUnknown, "encode refresh request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return out, faults.Wrap(faults.KindUnknown, "build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return out, faults.Wrap(faults.KindNetwork, "refresh endpoint unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, faults.Wrap(faults.KindNetwork, "read refresh response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return out, faults.New(faults.KindRateLimited, "refresh endpoint throttled")
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return out, faults.New(faults.KindUnauthorized, "refresh rejected by upstream")
	}

	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		return RefreshResponse{}, faults.New(faults.KindUnauthorized, "refresh response missing access token")
	}
	return out, nil
}
