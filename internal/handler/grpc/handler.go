package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/TomasB/ip2country/internal/geoip"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ip2country.v1.CountryService"

// Resolver resolves an address to a country.
type Resolver interface {
	Resolve(ctx context.Context, address string, codeOnly bool) (*geoip.Result, error)
}

// CountryServiceServer is the server API for the CountryService.
// Requests carry the address as a StringValue.
type CountryServiceServer interface {
	Resolve(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ResolveCode(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// ServiceDesc describes the CountryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CountryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "ResolveCode", Handler: resolveCodeHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv CountryServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CountryServiceServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Resolve"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CountryServiceServer).Resolve(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveCodeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CountryServiceServer).ResolveCode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ResolveCode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CountryServiceServer).ResolveCode(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Handler implements CountryServiceServer.
type Handler struct {
	resolver Resolver
}

// NewHandler creates a new gRPC handler with the given Resolver.
func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Resolve returns {"code": ..., "name": ...}. name is omitted when the
// backend produced none.
func (h *Handler) Resolve(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	res, err := h.resolve(ctx, req, false)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"code": res.Code}
	if res.Name != "" {
		fields["name"] = res.Name
	}
	return structpb.NewStruct(fields)
}

// ResolveCode returns the country code only.
func (h *Handler) ResolveCode(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	res, err := h.resolve(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(res.Code), nil
}

func (h *Handler) resolve(ctx context.Context, req *wrapperspb.StringValue, codeOnly bool) (*geoip.Result, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	ip := req.GetValue()
	if ip == "" {
		return nil, status.Error(codes.InvalidArgument, "ip is required")
	}
	if net.ParseIP(ip) == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid IP address")
	}

	res, err := h.resolver.Resolve(ctx, ip, codeOnly)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, geoip.ErrDisabled):
		return nil, status.Error(codes.FailedPrecondition, "geoip disabled")
	case errors.Is(err, geoip.ErrNoResolution):
		return nil, status.Error(codes.NotFound, "country not resolved")
	default:
		slog.Error("country lookup failed", "ip", ip, "error", err)
		return nil, status.Error(codes.Internal, "lookup failed")
	}
}
