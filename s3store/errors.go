package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/sagarc03/stowdav"
)

// codeStatus covers API errors that reach us without an HTTP response,
// typically modeled errors returned by test doubles or middleware.
var codeStatus = map[string]int{
	"NoSuchKey":          http.StatusNotFound,
	"NotFound":           http.StatusNotFound,
	"NoSuchBucket":       http.StatusNotFound,
	"AccessDenied":       http.StatusForbidden,
	"PreconditionFailed": http.StatusPreconditionFailed,
	"SlowDown":           http.StatusServiceUnavailable,
	"InvalidRange":       http.StatusRequestedRangeNotSatisfiable,
}

// translate maps an SDK error onto the stowdav error kinds.
func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr smithy.APIError
	hasAPIErr := errors.As(err, &apiErr)

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		be := stowdav.NewBackendError(respErr.HTTPStatusCode(), nil)
		be.RequestID = respErr.ServiceRequestID()
		if hasAPIErr {
			be.Code = apiErr.ErrorCode()
			be.Message = apiErr.ErrorMessage()
		}
		be.SynthesizeBody()
		return be
	}

	if hasAPIErr {
		be := stowdav.NewBackendError(codeStatus[apiErr.ErrorCode()], nil)
		be.Code = apiErr.ErrorCode()
		be.Message = apiErr.ErrorMessage()
		be.SynthesizeBody()
		return be
	}

	return fmt.Errorf("%w: %w", stowdav.ErrTransportFailed, err)
}
