package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// MatchServiceName is the gRPC service name of the match manager.
const MatchServiceName = "gitcg.v1.MatchService"

// Full method names.
const (
	MatchServiceCreateMatch = "/" + MatchServiceName + "/CreateMatch"
	MatchServiceGetMatch    = "/" + MatchServiceName + "/GetMatch"
	MatchServiceListMatches = "/" + MatchServiceName + "/ListMatches"
	MatchServiceAbortMatch  = "/" + MatchServiceName + "/AbortMatch"
)

// MatchServiceServer is the gRPC surface of the match manager. Requests
// and responses are google.protobuf.Struct so clients need no generated
// stubs; match payloads have the JSON shape of MatchInfo.
type MatchServiceServer interface {
	CreateMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AbortMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterMatchServiceServer registers srv on s.
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&matchServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(MatchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var matchServiceDesc = grpc.ServiceDesc{
	ServiceName: MatchServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateMatch", Handler: unaryHandler(MatchServiceCreateMatch, MatchServiceServer.CreateMatch)},
		{MethodName: "GetMatch", Handler: unaryHandler(MatchServiceGetMatch, MatchServiceServer.GetMatch)},
		{MethodName: "ListMatches", Handler: unaryHandler(MatchServiceListMatches, MatchServiceServer.ListMatches)},
		{MethodName: "AbortMatch", Handler: unaryHandler(MatchServiceAbortMatch, MatchServiceServer.AbortMatch)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gitcg/v1/match.proto",
}

// MatchServiceClient calls a MatchService.
type MatchServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMatchServiceClient(cc grpc.ClientConnInterface) *MatchServiceClient {
	return &MatchServiceClient{cc: cc}
}

func (c *MatchServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchServiceClient) CreateMatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MatchServiceCreateMatch, in, opts...)
}

func (c *MatchServiceClient) GetMatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MatchServiceGetMatch, in, opts...)
}

func (c *MatchServiceClient) ListMatches(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MatchServiceListMatches, in, opts...)
}

func (c *MatchServiceClient) AbortMatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MatchServiceAbortMatch, in, opts...)
}

// matchService implements MatchServiceServer on a Manager.
type matchService struct {
	manager *Manager
	logger  *zap.Logger
}

// CreateMatch creates a match from {"decks": [..], "bots": [..], "seed": n}.
func (s *matchService) CreateMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mr, err := matchRequestFromStruct(req)
	if err != nil {
		return failure(err)
	}
	match, err := s.manager.CreateMatch(mr)
	if err != nil {
		s.logger.Warn("create match failed", zap.Error(err), zap.String("peer", extractHostFromContext(ctx)))
		return failure(err)
	}
	info, err := infoValue(match.Info())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode match: %v", err)
	}
	return structpb.NewStruct(map[string]any{"success": true, "match": info})
}

func (s *matchService) GetMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	match, err := s.manager.Get(id)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	info, err := infoValue(match.Info())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode match: %v", err)
	}
	return structpb.NewStruct(map[string]any{"match": info})
}

func (s *matchService) ListMatches(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	infos := s.manager.List()
	list := make([]any, 0, len(infos))
	for _, info := range infos {
		v, err := infoValue(info)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode match: %v", err)
		}
		list = append(list, v)
	}
	return structpb.NewStruct(map[string]any{"matches": list})
}

// AbortMatch stops a match. It is guarded by AdminInterceptor.
func (s *matchService) AbortMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if err := s.manager.Abort(id); err != nil {
		return failure(err)
	}
	s.logger.Info("match aborted by admin",
		zap.String("match_id", id),
		zap.String("peer", extractHostFromContext(ctx)),
	)
	return structpb.NewStruct(map[string]any{"success": true})
}

func failure(err error) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"success": false, "error": err.Error()})
}

func matchRequestFromStruct(req *structpb.Struct) (MatchRequest, error) {
	var mr MatchRequest
	fields := req.GetFields()
	decks := fields["decks"].GetListValue().GetValues()
	if len(decks) != 2 {
		return mr, errors.New("decks must name exactly two decks")
	}
	for who, d := range decks {
		mr.Decks[who] = d.GetStringValue()
	}
	if bots := fields["bots"].GetListValue().GetValues(); len(bots) > 0 {
		if len(bots) != 2 {
			return mr, errors.New("bots must have exactly two entries")
		}
		for who, b := range bots {
			mr.Bots[who] = b.GetBoolValue()
		}
	}
	if seed := fields["seed"].GetNumberValue(); seed > 0 {
		mr.Seed = uint64(seed)
	}
	return mr, nil
}

// infoValue converts a MatchInfo into its JSON shape for structpb.
func infoValue(info MatchInfo) (map[string]any, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCServer serves the match service and the standard health service.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewGRPCServer builds the gRPC server. AbortMatch requires the admin
// password matching adminHash.
func NewGRPCServer(manager *Manager, adminHash string, logger *zap.Logger) *GRPCServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
			AdminInterceptor(adminHash, MatchServiceAbortMatch),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	RegisterMatchServiceServer(srv, &matchService{manager: manager, logger: logger})

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(MatchServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{server: srv, health: hs, logger: logger}
}

// Serve accepts connections on lis until Stop.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info("starting gRPC server", zap.String("address", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING and drains in-flight calls.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
