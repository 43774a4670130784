package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/turtacn/PlotAtlas/internal/application/atlas"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// AtlasServiceName is the fully qualified gRPC service name.
const AtlasServiceName = "plotatlas.v1.Atlas"

// AtlasServer is the Atlas API.  Collections travel as google.protobuf.Struct
// holding the GeoJSON document, so no generated stubs are needed.
type AtlasServer interface {
	Version(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Clusters(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Plots(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Property(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Reconstruct(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AtlasServiceDesc describes AtlasServer for grpc.Server.RegisterService.
var AtlasServiceDesc = grpc.ServiceDesc{
	ServiceName: AtlasServiceName,
	HandlerType: (*AtlasServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Version", Handler: unaryHandler("Version", newEmpty, AtlasServer.Version)},
		{MethodName: "Clusters", Handler: unaryHandler("Clusters", newEmpty, AtlasServer.Clusters)},
		{MethodName: "Plots", Handler: unaryHandler("Plots", newString, AtlasServer.Plots)},
		{MethodName: "Property", Handler: unaryHandler("Property", newString, AtlasServer.Property)},
		{MethodName: "Reconstruct", Handler: unaryHandler("Reconstruct", newStruct, AtlasServer.Reconstruct)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "plotatlas/v1/atlas.proto",
}

// FullMethod returns "/plotatlas.v1.Atlas/{method}".
func FullMethod(method string) string {
	return "/" + AtlasServiceName + "/" + method
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

func newStruct() *structpb.Struct { return new(structpb.Struct) }

func unaryHandler[Req any, Resp any](method string, newReq func() Req, call func(AtlasServer, context.Context, Req) (Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AtlasServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AtlasServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AtlasService implements AtlasServer over atlas.Service.
type AtlasService struct {
	svc atlas.Service
}

func NewAtlasService(svc atlas.Service) *AtlasService {
	return &AtlasService{svc: svc}
}

// Register attaches the service to srv.
func (s *AtlasService) Register(srv *Server) {
	srv.RegisterService(&AtlasServiceDesc, s)
}

func (s *AtlasService) Version(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	v, err := s.svc.Version(ctx)
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(v), nil
}

func (s *AtlasService) Clusters(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fc, err := s.svc.Clusters(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(fc)
}

func (s *AtlasService) Plots(ctx context.Context, city *wrapperspb.StringValue) (*structpb.Struct, error) {
	fc, err := s.svc.Plots(ctx, city.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(fc)
}

func (s *AtlasService) Property(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error) {
	p, err := s.svc.Property(ctx, id.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(p)
}

// Reconstruct expects {"plotData": ..., "properties": {...}}; plotData may be
// an object or its JSON string.
func (s *AtlasService) Reconstruct(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	m := in.AsMap()
	props, _ := m["properties"].(map[string]interface{})
	p := s.svc.Reconstruct(plotmap.PlotDataFromProperties(m), props)
	return toStruct(p)
}

// toStruct goes through JSON so the wire shape matches the HTTP API.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode response")
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode response")
	}
	return st, nil
}

//Personal.AI order the ending
