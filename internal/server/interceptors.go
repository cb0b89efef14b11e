package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// healthServicePrefix prefixes every method of the grpc.health.v1 service.
const healthServicePrefix = "/grpc.health.v1.Health/"

var (
	errNoAuthorization = errors.New("missing authorization header")
	errAuthScheme      = errors.New("invalid authorization scheme")
	errBadToken        = errors.New("invalid token")
)

// checkBearer validates an Authorization header value against token.
func checkBearer(header, token string) error {
	if header == "" {
		return errNoAuthorization
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errAuthScheme
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return errBadToken
	}
	return nil
}

// rpcGuard holds what the gatepass gRPC interceptors share: the operator
// token and the logger that records each call. Health methods are open;
// everything else, reflection streams included, needs the token once one
// is configured.
type rpcGuard struct {
	token  string
	logger *slog.Logger
}

func newRPCGuard(token string, logger *slog.Logger) *rpcGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &rpcGuard{token: token, logger: logger}
}

func (g *rpcGuard) authorize(ctx context.Context, method string) error {
	if g.token == "" || strings.HasPrefix(method, healthServicePrefix) {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	var header string
	if vals := md.Get("authorization"); len(vals) > 0 {
		header = vals[0]
	}
	if err := checkBearer(header, g.token); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

func (g *rpcGuard) finish(method string, start time.Time, err error) {
	attrs := []any{"method", method, "duration", time.Since(start)}
	if err != nil {
		g.logger.Warn("grpc: call failed", append(attrs, "code", status.Code(err).String(), "err", err)...)
		return
	}
	g.logger.Debug("grpc: call", attrs...)
}

func (g *rpcGuard) recovered(method string, r any) error {
	g.logger.Error("grpc: panic in handler",
		"method", method,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()),
	)
	return status.Error(codes.Internal, "internal server error")
}

// unary guards unary calls such as Health/Check.
func (g *rpcGuard) unary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = g.recovered(info.FullMethod, r)
		}
		g.finish(info.FullMethod, start, err)
	}()
	if err := g.authorize(ctx, info.FullMethod); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// stream guards streaming calls: Health/Watch and
// ServerReflectionInfo.
func (g *rpcGuard) stream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = g.recovered(info.FullMethod, r)
		}
		g.finish(info.FullMethod, start, err)
	}()
	if err := g.authorize(ss.Context(), info.FullMethod); err != nil {
		return err
	}
	return handler(srv, ss)
}

// AuthMiddleware wraps an http.Handler and checks the Authorization header for
// a valid Bearer token. When token is empty, auth is disabled and all requests
// pass through. GET /v1/health is always exempt.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if err := checkBearer(r.Header.Get("Authorization"), token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns a panicking handler into a 500 response instead
// of a dropped connection.
func RecoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered in HTTP handler",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
