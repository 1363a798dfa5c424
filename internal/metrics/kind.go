package metrics

import (
	"context"
	"errors"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
)

// ErrorKind classifies a call error for the kind label.
func ErrorKind(err error) string {
	var (
		remote *clienterr.RemoteError
		codec  *clienterr.CodecError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &remote):
		return "remote"
	case errors.As(err, &codec):
		return "codec"
	case errors.Is(err, clienterr.ErrArgument):
		return "argument"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "transport"
	}
}
