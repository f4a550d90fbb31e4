package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// InterceptorChain 拦截器链：panic 恢复、访问日志、领域错误转换
type InterceptorChain struct {
	log logger.Logger
}

// NewInterceptorChain 创建拦截器链
func NewInterceptorChain(log logger.Logger) *InterceptorChain {
	return &InterceptorChain{log: log.WithComponent("grpc")}
}

// ServerOptions returns the unary and stream chains as server options.
func (ic *InterceptorChain) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(ic.unary),
		grpc.ChainStreamInterceptor(ic.stream),
	}
}

func (ic *InterceptorChain) unary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	start := time.Now()
	defer func() {
		err = ic.finish(ctx, info.FullMethod, start, recover(), err)
	}()
	return handler(ctx, req)
}

// stream covers health Watch, which stays open for the life of the client.
func (ic *InterceptorChain) stream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	start := time.Now()
	defer func() {
		err = ic.finish(ss.Context(), info.FullMethod, start, recover(), err)
	}()
	return handler(srv, ss)
}

// finish turns a recovered panic into Internal, maps domain errors to status
// codes and logs the call.
func (ic *InterceptorChain) finish(ctx context.Context, method string, start time.Time, panicked interface{}, err error) error {
	if panicked != nil {
		ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", panicked), logger.String("method", method))
		err = status.Error(grpcCodes.Internal, "internal server error")
	} else if err != nil {
		err = convertDomainErrorToGRPC(err)
	}
	ic.log.Debug(ctx, "gRPC call completed",
		logger.String("method", method),
		logger.Int64("duration_ms", time.Since(start).Milliseconds()),
		logger.String("status", status.Code(err).String()),
	)
	return err
}

// grpcCodeFor 领域错误码到 gRPC 状态码的映射，未列出的为 Internal
var grpcCodeFor = map[errors.Code]grpcCodes.Code{
	errors.CodeKeyNotFound:      grpcCodes.NotFound,
	errors.CodeDeadlineExceeded: grpcCodes.DeadlineExceeded,
	errors.CodeStoreUnavailable: grpcCodes.Unavailable,
	errors.CodeDuplicateKey:     grpcCodes.AlreadyExists,
	errors.CodeInvalidArgument:  grpcCodes.InvalidArgument,
	errors.CodeIllegalState:     grpcCodes.FailedPrecondition,
	errors.CodeUnauthorized:     grpcCodes.Unauthenticated,
}

func convertDomainErrorToGRPC(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return status.Error(grpcCodes.Internal, err.Error())
	}
	code, ok := grpcCodeFor[appErr.Code()]
	if !ok {
		code = grpcCodes.Internal
	}
	return status.Error(code, appErr.Error())
}
