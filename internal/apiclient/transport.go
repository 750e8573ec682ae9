package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

const maxBodyBytes = 4 << 20

// headerSet holds default headers sent with every request.
type headerSet struct {
	mu sync.RWMutex
	h  http.Header
}

func (s *headerSet) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.Set(key, value)
}

func (s *headerSet) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.Del(key)
}

func (s *headerSet) get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.Get(key)
}

func (s *headerSet) applyTo(dst http.Header) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.h {
		if _, ok := dst[k]; !ok {
			dst[k] = append([]string(nil), v...)
		}
	}
}

type transport struct {
	http      *http.Client
	baseURL   string
	userAgent string
	defaults  *headerSet
}

func (t *transport) Execute(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(payload)
	}

	target := t.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	t.defaults.applyTo(httpReq.Header)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}

	httpResp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, &errorutil.DomainError{
			Code:    "NETWORK_ERROR",
			Message: "could not reach the server",
			Err:     err,
		}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, &errorutil.DomainError{
			Code:       "NETWORK_ERROR",
			Message:    "could not read the server response",
			HTTPStatus: httpResp.StatusCode,
			Err:        err,
		}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       raw,
		Cookies:    httpResp.Cookies(),
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, errorutil.FromResponse(httpResp.StatusCode, raw)
	}
	return resp, nil
}
