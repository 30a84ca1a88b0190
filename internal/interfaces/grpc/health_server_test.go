package grpc

import (
	"context"
	stderrors "errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

const bufSize = 1024 * 1024

type fakeHealth struct {
	mu      sync.Mutex
	ready   error
	healthy bool
}

func (f *fakeHealth) set(ready error, healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready, f.healthy = ready, healthy
}

func (f *fakeHealth) Check(context.Context) *dto.HealthReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := dto.HealthHealthy
	if !f.healthy {
		state = dto.HealthDegraded
	}
	return &dto.HealthReport{Status: state}
}

func (f *fakeHealth) Ready(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func startBufGRPC(t *testing.T, srv *HealthServer) healthpb.HealthClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(listener); err != nil {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	conn, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = listener.Close()
	})
	return healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer_Refresh(t *testing.T) {
	fake := &fakeHealth{}
	srv := NewHealthServer(fake, NewInterceptorChain(logger.NewNoopLogger(), nil), time.Hour, logger.NewNoopLogger())
	client := startBufGRPC(t, srv)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, ""))

	fake.set(nil, false)
	srv.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, constants.ServiceName))

	fake.set(nil, true)
	srv.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, constants.ServiceName))

	fake.set(stderrors.New("Operaton unavailable"), false)
	srv.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, ""))
}

func TestHealthServer_UnknownService(t *testing.T) {
	srv := NewHealthServer(&fakeHealth{}, nil, 0, logger.NewNoopLogger())
	client := startBufGRPC(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestHealthServer_RunStopsWithContext(t *testing.T) {
	fake := &fakeHealth{}
	fake.set(nil, true)
	srv := NewHealthServer(fake, nil, 10*time.Millisecond, logger.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{errors.ErrValidation("bad"), codes.InvalidArgument},
		{errors.ErrMissingToken(), codes.Unauthenticated},
		{errors.ErrTenantMismatch(), codes.PermissionDenied},
		{errors.ErrProcessNotFound(), codes.NotFound},
		{errors.ErrRateLimitExceeded(), codes.ResourceExhausted},
		{errors.ErrServiceUnavailable("down"), codes.Unavailable},
		{errors.ErrInternal(), codes.Internal},
		{stderrors.New("plain"), codes.Internal},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(toStatus(tc.err)), tc.err.Error())
	}
}

