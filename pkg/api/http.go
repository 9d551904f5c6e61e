package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yumyai/structable/pkg/model"
)

const (
	metadataEndpoint     = "/api/structures/metadata"
	filterEndpoint       = "/api/structures/filter"
	cdr3Endpoint         = "/api/structures/cdr3"
	membersEndpoint      = "/api/structures/members"
	availabilityEndpoint = "/api/search/availability"
)

// HTTPSource talks to the structures backend over HTTP.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Metadata(ctx context.Context) (*model.Metadata, error) {
	body, err := s.get(ctx, metadataEndpoint)
	if err != nil {
		return nil, err
	}
	var metadata model.Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &metadata, nil
}

func (s *HTTPSource) Filter(ctx context.Context, filter model.TreeFilter) ([]*model.Epitope, error) {
	body, err := s.post(ctx, filterEndpoint, filter)
	if err != nil {
		return nil, err
	}
	return model.NormalizeFilterResponse(body, filter.Entries)
}

func (s *HTTPSource) SearchCDR3(ctx context.Context, req CDR3Request) (*model.CDR3SearchResult, error) {
	body, err := s.post(ctx, cdr3Endpoint, req)
	if err != nil {
		return nil, err
	}
	requested := model.CDR3SearchOptions{
		CDR3:      req.CDR3,
		Substring: req.Substring,
		Gene:      req.Gene,
		Top:       req.Top,
	}
	return model.NormalizeCDR3Response(body, requested)
}

func (s *HTTPSource) Members(ctx context.Context, req MembersRequest) (*MembersResponse, error) {
	body, err := s.post(ctx, membersEndpoint, req)
	if err != nil {
		return nil, err
	}
	var resp MembersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode members response: %w", err)
	}
	return &resp, nil
}

func (s *HTTPSource) Availability(ctx context.Context) (*AvailabilityResponse, error) {
	body, err := s.get(ctx, availabilityEndpoint)
	if err != nil {
		return nil, err
	}
	var resp AvailabilityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode availability response: %w", err)
	}
	return &resp, nil
}

func (s *HTTPSource) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	return s.do(req)
}

func (s *HTTPSource) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *HTTPSource) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}
	return body, nil
}
