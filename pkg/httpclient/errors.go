package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/farmmarket/pkg/errors"
)

type downstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and converts it
// into an error. Bodies in the {"error":{code,message}} envelope keep their
// semantics as AppErrors; anything else becomes a plain error carrying the
// status and (truncated) body.
func ParseResponseError(resp *http.Response, target string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", target, resp.StatusCode, err)
	}

	var downstream downstreamErrorResponse
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != nil {
		return mapDownstreamError(resp.StatusCode, downstream.Error.Code, downstream.Error.Message, target)
	}

	return fmt.Errorf("%s returned status %d: %s", target, resp.StatusCode, string(body))
}

func mapDownstreamError(status int, code, message, target string) error {
	msg := fmt.Sprintf("%s: %s", target, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(target, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(msg)
	case status == http.StatusConflict:
		return apperrors.Conflict(msg)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(msg)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", target, status, code, message)
	default:
		return &apperrors.AppError{Code: code, Message: msg, Status: status}
	}
}
