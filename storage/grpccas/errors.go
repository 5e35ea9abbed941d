package grpccas

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/certstore"
)

// wireErrors carries storage and chain sentinels across the wire. A code
// appears at most once so the mapping inverts.
var wireErrors = []struct {
	code codes.Code
	err  error
}{
	{codes.NotFound, storage.ErrNotFound},
	{codes.InvalidArgument, storage.ErrInvalidCID},
	{codes.DataLoss, storage.ErrCIDMismatch},
	{codes.AlreadyExists, storage.ErrImmutable},
	{codes.FailedPrecondition, certstore.ErrNotCanonical},
}

// errNoCAS is returned by a Server with no backend.
var errNoCAS = status.Error(codes.Unavailable, "grpccas: server has no CAS")

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, w := range wireErrors {
		if errors.Is(err, w.err) {
			return status.Error(w.code, w.err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, w := range wireErrors {
		if st.Code() == w.code {
			return w.err
		}
	}
	return err
}
