package httpstore

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/sagarc03/stowdav"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

var requestIDHeaders = []string{"x-amz-request-id", "x-oss-request-id", "X-Request-Id"}

// jsonError is the stowry server error body.
type jsonError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// xmlError is the S3-style error body.
type xmlError struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// parseError turns a non-success response into a *stowdav.BackendError. The
// raw body is kept even when it cannot be decoded. A body that fails partway
// is kept as read and the read error is noted in Message.
func parseError(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	be := stowdav.NewBackendError(resp.StatusCode, body)

	for _, h := range requestIDHeaders {
		if id := resp.Header.Get(h); id != "" {
			be.RequestID = id
			break
		}
	}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '{':
		var je jsonError
		if json.Unmarshal(trimmed, &je) == nil {
			be.Code = je.Error
			be.Message = je.Message
		}
	case trimmed[0] == '<':
		var xe xmlError
		if xml.Unmarshal(trimmed, &xe) == nil {
			be.Code = xe.Code
			be.Message = xe.Message
			if be.RequestID == "" {
				be.RequestID = xe.RequestID
			}
		}
	}

	if readErr != nil {
		note := fmt.Sprintf("error body truncated after %d bytes: %v", len(body), readErr)
		if be.Message == "" {
			be.Message = note
		} else {
			be.Message += " (" + note + ")"
		}
	}

	return be
}
