// Package transport carries scan requests and reports over a WebSocket
// connection.
//
// Every frame is one JSON object:
//
//	request:  {"type":"scan","context":{...}}
//	success:  {"type":"scanResults","data":{...report...}}
//	failure:  {"type":"error","error":{"message":"...","stack":"..."}}
//
// An optional "id" on a request is echoed on its response.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/25smoking/mcpscan/internal/core"
)

const (
	TypeScan        = "scan"
	TypeScanResults = "scanResults"
	TypeError       = "error"
)

// Request is an inbound message.
type Request struct {
	ID      string            `json:"id,omitempty"`
	Type    string            `json:"type"`
	Context *core.ScanContext `json:"context,omitempty"`
}

// Response is an outbound message.
type Response struct {
	ID    string          `json:"id,omitempty"`
	Type  string          `json:"type"`
	Data  *core.Report    `json:"data,omitempty"`
	Error *core.ScanError `json:"error,omitempty"`
}

// RemoteError is an error message returned by the server.
type RemoteError struct {
	Message string
	Stack   string
}

func (e *RemoteError) Error() string {
	return "server error: " + e.Message
}

func resultsResponse(id string, report *core.Report) *Response {
	return &Response{ID: id, Type: TypeScanResults, Data: report}
}

func errorResponse(id, message, stack string) *Response {
	return &Response{ID: id, Type: TypeError, Error: &core.ScanError{Message: message, Stack: stack}}
}

// EncodeResponse serializes a response frame.
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse parses a response frame and returns its report, or the server
// error it carries.
func DecodeResponse(data []byte) (*Response, *core.Report, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}

	switch resp.Type {
	case TypeScanResults:
		if resp.Data == nil {
			return &resp, nil, fmt.Errorf("scanResults message without data")
		}
		return &resp, resp.Data, nil
	case TypeError:
		remote := &RemoteError{Message: "unknown error"}
		if resp.Error != nil {
			remote.Message = resp.Error.Message
			remote.Stack = resp.Error.Stack
		}
		return &resp, nil, remote
	default:
		return &resp, nil, fmt.Errorf("unexpected message type %q", resp.Type)
	}
}
