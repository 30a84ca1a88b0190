package grpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// InterceptorChain holds the unary interceptors of the gRPC server.
type InterceptorChain struct {
	log     logger.Logger
	limiter service.RateLimiter
}

// NewInterceptorChain creates the chain. limiter may be nil.
func NewInterceptorChain(log logger.Logger, limiter service.RateLimiter) *InterceptorChain {
	return &InterceptorChain{
		log:     log,
		limiter: limiter,
	}
}

// UnaryRecoveryInterceptor turns handler panics into Internal.
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod),
				)
				err = status.Error(grpcCodes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor logs each call with its duration and status.
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		ic.log.Debug(ctx, "gRPC request completed",
			logger.String("method", info.FullMethod),
			logger.String("client_ip", firstMetadata(ctx, "x-forwarded-for")),
			logger.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			logger.String("status", code.String()),
		)

		return resp, err
	}
}

// UnaryRateLimitInterceptor limits callers by the x-tenant-id metadata,
// falling back to x-forwarded-for. Limiter failures let the call through.
func (ic *InterceptorChain) UnaryRateLimitInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if ic.limiter == nil {
			return handler(ctx, req)
		}

		key := "grpc:global"
		if tenant := firstMetadata(ctx, "x-tenant-id"); tenant != "" {
			key = "grpc:tenant:" + tenant
		} else if ip := firstMetadata(ctx, "x-forwarded-for"); ip != "" {
			key = "grpc:ip:" + ip
		}

		decision, err := ic.limiter.Allow(ctx, key)
		if err != nil {
			ic.log.Warn(ctx, "rate limit check failed, allowing request",
				logger.String("key", key),
				logger.String("error", err.Error()),
			)
			return handler(ctx, req)
		}
		if !decision.Allowed {
			return nil, status.Error(grpcCodes.ResourceExhausted, errors.ErrRateLimitExceeded().Message())
		}

		return handler(ctx, req)
	}
}

// UnaryErrorInterceptor maps AppErrors onto gRPC status codes.
func (ic *InterceptorChain) UnaryErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		return resp, toStatus(err)
	}
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	appErr, ok := errors.As(err)
	if !ok {
		return status.Error(grpcCodes.Internal, "internal server error")
	}

	switch appErr.HTTPStatus() {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return status.Error(grpcCodes.InvalidArgument, appErr.Message())
	case http.StatusUnauthorized:
		return status.Error(grpcCodes.Unauthenticated, appErr.Message())
	case http.StatusForbidden:
		return status.Error(grpcCodes.PermissionDenied, appErr.Message())
	case http.StatusNotFound:
		return status.Error(grpcCodes.NotFound, appErr.Message())
	case http.StatusTooManyRequests:
		return status.Error(grpcCodes.ResourceExhausted, appErr.Message())
	case http.StatusServiceUnavailable:
		return status.Error(grpcCodes.Unavailable, appErr.Message())
	default:
		return status.Error(grpcCodes.Internal, appErr.Message())
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// ChainUnaryInterceptors returns the server option installing every interceptor.
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		ic.UnaryRecoveryInterceptor(),
		ic.UnaryLoggingInterceptor(),
		ic.UnaryRateLimitInterceptor(),
		ic.UnaryErrorInterceptor(),
	)
}
