package app

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/advice"
	"github.com/dmehra2102/grpcadvice/internal/domain"
)

const retryAfterKey = "x-retry-after"

// RegisterDomainAdvice maps the domain error taxonomy to gRPC statuses.
func RegisterDomainAdvice(r *advice.Registry) error {
	err := errors.Join(
		advice.HandleAs(r, validationAdvice),
		r.Handle(domain.ErrEmptyMessage, advice.Code(codes.InvalidArgument)),
		r.Handle(domain.ErrInvalidArgument, advice.Code(codes.InvalidArgument)),
		r.Handle(domain.ErrNotFound, advice.Code(codes.NotFound)),
		r.Handle(domain.ErrAlreadyExists, advice.Code(codes.AlreadyExists)),
		r.Handle(domain.ErrFailedPrecondition, advice.Code(codes.FailedPrecondition)),
		r.Handle(domain.ErrUnauthorized, advice.Code(codes.Unauthenticated)),
		r.Handle(domain.ErrForbidden, advice.Code(codes.PermissionDenied)),
		r.Handle(domain.ErrUnavailable, unavailableAdvice),
	)
	return err
}

func validationAdvice(_ context.Context, err *domain.ValidationError) (*status.Status, metadata.MD) {
	st := status.New(codes.InvalidArgument, err.Error())
	detailed, derr := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{Field: err.Field, Description: err.Reason},
		},
	})
	if derr != nil {
		return st, nil
	}
	return detailed, nil
}

func unavailableAdvice(_ context.Context, err error) (*status.Status, metadata.MD) {
	return status.New(codes.Unavailable, err.Error()), metadata.Pairs(retryAfterKey, "1s")
}
