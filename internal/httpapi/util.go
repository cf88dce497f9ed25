package httpapi

import (
	"bytes"
	"io"
	"net/http"
)

// readAndRestoreBody drains r.Body (needed for HMAC signature verification)
// and replaces it so downstream handlers can still decode it.
func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
