package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestCheckAdminPassword(t *testing.T) {
	hash, err := HashAdminPassword("letmein")
	require.NoError(t, err)

	tests := []struct {
		name     string
		hash     string
		password string
		want     error
	}{
		{name: "match", hash: hash, password: "letmein"},
		{name: "mismatch", hash: hash, password: "letmeout", want: ErrAdminDenied},
		{name: "empty password", hash: hash, want: ErrAdminDenied},
		{name: "disabled", password: "letmein", want: ErrAdminDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAdminPassword(tt.hash, tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: MatchServiceGetMatch}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestAdminInterceptorGuardsListedMethods(t *testing.T) {
	hash, err := HashAdminPassword("letmein")
	require.NoError(t, err)
	interceptor := AdminInterceptor(hash, MatchServiceAbortMatch)
	handler := func(context.Context, any) (any, error) { return "ok", nil }

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MatchServiceListMatches}, handler)
	assert.NoError(t, err)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MatchServiceAbortMatch}, handler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(AdminPasswordHeader, "letmein"))
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: MatchServiceAbortMatch}, handler)
	assert.NoError(t, err)
}
