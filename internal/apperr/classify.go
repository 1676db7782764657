package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Classify maps an error to the HTTP status the API answers with and a short
// error type used in response bodies and metrics labels.
func Classify(err error) (int, Kind) {
	if err == nil {
		return http.StatusOK, ""
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindUnsupportedFileType, KindEmptyRequest, KindMailDecode,
			KindContentBlocked, KindBadRequest:
			return http.StatusBadRequest, e.Kind
		case KindUpstreamUnavailable:
			return http.StatusServiceUnavailable, e.Kind
		case KindModelCall:
			// a timeout inside the model call is reported as such
			if isTimeout(e.Err) {
				return http.StatusGatewayTimeout, e.Kind
			}
			return http.StatusInternalServerError, e.Kind
		default:
			return http.StatusInternalServerError, e.Kind
		}
	}

	if isTimeout(err) {
		return http.StatusGatewayTimeout, KindUnknown
	}
	return http.StatusInternalServerError, KindUnknown
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
