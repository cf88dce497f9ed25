package secretstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agentbridge/agentbridge/internal/apierr"
)

// HTTPKV talks to an external KV-v2-style secret service over plain HTTP,
// per spec.md §4.8's requirement that Vault (or any such store) remain an
// external collaborator rather than an imported SDK. Paths are relative to
// baseURL and data is wrapped/unwrapped the way Vault's KV-v2 engine does
// (a top-level "data" object), so it is compatible with a real Vault KV-v2
// mount without pulling in hashicorp/vault/api.
type HTTPKV struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPKV(baseURL, token string, client *http.Client) *HTTPKV {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPKV{baseURL: baseURL, token: token, client: client}
}

type kvEnvelope struct {
	Data map[string]string `json:"data"`
}

func (h *HTTPKV) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal kv request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build kv request: %w", err)
	}
	req.Header.Set("X-Vault-Token", h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindServiceUnavailable, "secret store unreachable", err)
	}
	return resp, nil
}

func (h *HTTPKV) Get(ctx context.Context, path string) (map[string]string, error) {
	resp, err := h.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierr.New(apierr.KindNotFound, fmt.Sprintf("no secret at %s", path))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.Newf(apierr.KindServiceUnavailable, "secret store returned %d", resp.StatusCode)
	}

	var env kvEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode kv response: %w", err)
	}
	return env.Data, nil
}

func (h *HTTPKV) Put(ctx context.Context, path string, data map[string]string) error {
	resp, err := h.do(ctx, http.MethodPut, path, kvEnvelope{Data: data})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return apierr.Newf(apierr.KindServiceUnavailable, "secret store returned %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPKV) Delete(ctx context.Context, path string) error {
	resp, err := h.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return apierr.Newf(apierr.KindServiceUnavailable, "secret store returned %d", resp.StatusCode)
	}
	return nil
}
