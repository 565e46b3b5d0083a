// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package gcperr classifies errors coming back from Google Cloud clients,
// whether they were produced by the REST (googleapi) or gRPC transport.
package gcperr

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HTTPCode returns the HTTP status carried by err, or 0 when there is none.
// gRPC codes are mapped to their HTTP equivalents.
func HTTPCode(err error) int {
	if err == nil {
		return 0
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.PermissionDenied:
			return http.StatusForbidden
		case codes.Unauthenticated:
			return http.StatusUnauthorized
		case codes.NotFound:
			return http.StatusNotFound
		case codes.AlreadyExists, codes.Aborted:
			return http.StatusConflict
		case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
			return http.StatusBadRequest
		case codes.ResourceExhausted:
			return http.StatusTooManyRequests
		case codes.Unavailable:
			return http.StatusServiceUnavailable
		case codes.DeadlineExceeded:
			return http.StatusGatewayTimeout
		}
	}
	return 0
}

func IsPermissionDenied(err error) bool {
	return HTTPCode(err) == http.StatusForbidden
}

func IsConflict(err error) bool {
	return HTTPCode(err) == http.StatusConflict
}

func IsNotFound(err error) bool {
	return HTTPCode(err) == http.StatusNotFound
}

// IsTransportOrAuth reports credential and connectivity failures: 401, 403,
// 503 and 504. These are never the outcome of the remote operation itself.
func IsTransportOrAuth(err error) bool {
	switch HTTPCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
