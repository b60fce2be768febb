// Package hosthttp gives guest plugins outbound HTTP through the host.
// Requests and responses cross the boundary as JSON; the host performs
// the actual network I/O with its own client and policy.
package hosthttp

import (
	"encoding/json"

	"github.com/wippyai/fsplugin/errors"
)

// Request describes one outbound HTTP call.
type Request struct {
	Headers map[string]string `json:"headers,omitempty"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    []byte            `json:"body,omitempty"`
}

// Response is the host's answer. Body carries the raw payload.
type Response struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	Status  int               `json:"status"`
}

// EncodeRequest renders a request as wire JSON.
func EncodeRequest(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Other("JSON serialization failed: %v", err)
	}
	return data, nil
}

// DecodeRequest parses wire JSON into a request.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, errors.InvalidInput("invalid JSON: %v", err)
	}
	return req, nil
}

// EncodeResponse renders a response as wire JSON.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Other("JSON serialization failed: %v", err)
	}
	return data, nil
}

// DecodeResponse parses wire JSON into a response.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, errors.InvalidInput("invalid JSON: %v", err)
	}
	return resp, nil
}
