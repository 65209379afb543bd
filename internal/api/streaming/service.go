package streaming

import (
	"context"
	"errors"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/devices"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "openvna.v1.Instruments"

// InstrumentsServer is the gRPC surface. Messages are structpb.Struct so
// the service needs no generated code.
//
//	Subscribe {"events": ["acquisition_completed", ...]}
//	  streams {"type", "timestamp", "data"}
//	Acquire {"instrument": id or name, "channel": 1, "ports": [1, 2]}
//	  returns the measurement result
type InstrumentsServer interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
	Acquire(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InstrumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Acquire", Handler: acquireHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "openvna/v1/instruments",
}

func Register(s grpc.ServiceRegistrar, srv InstrumentsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func acquireHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InstrumentsServer).Acquire(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Acquire"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InstrumentsServer).Acquire(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(InstrumentsServer).Subscribe(req, stream)
}

type InstrumentService struct {
	streamer *EventStreamer
	sessions *devices.Manager
	logger   *zap.Logger
}

func NewInstrumentService(streamer *EventStreamer, sessions *devices.Manager, logger *zap.Logger) *InstrumentService {
	return &InstrumentService{
		streamer: streamer,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *InstrumentService) Subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	var events []string
	for _, v := range req.GetFields()["events"].GetListValue().GetValues() {
		events = append(events, v.GetStringValue())
	}

	eventCh := s.streamer.Subscribe(events)
	defer s.streamer.Unsubscribe(eventCh)

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return nil
			}

			msg := &structpb.Struct{Fields: map[string]*structpb.Value{
				"type":      structpb.NewStringValue(event.Type),
				"timestamp": structpb.NewStringValue(event.Timestamp.Format(time.RFC3339Nano)),
				"data":      structpb.NewStructValue(event.Payload),
			}}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}

		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

func (s *InstrumentService) Acquire(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	ref := fields["instrument"].GetStringValue()
	if ref == "" {
		return nil, status.Error(codes.InvalidArgument, "instrument is required")
	}
	channel := 1
	if v, ok := fields["channel"]; ok {
		channel = int(v.GetNumberValue())
	}
	var ports []int
	for _, p := range fields["ports"].GetListValue().GetValues() {
		ports = append(ports, int(p.GetNumberValue()))
	}

	session, err := s.sessions.Lookup(ref)
	if err != nil {
		return nil, statusError(err)
	}

	result, err := session.Acquire(ctx, channel, ports)
	if err != nil {
		return nil, statusError(err)
	}

	out, err := toStruct(result)
	if err != nil {
		s.logger.Error("Failed to encode measurement", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// statusError maps the error classes onto gRPC codes, in the same order
// as the REST layer.
func statusError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, devices.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, types.ErrProtocol):
		code = codes.Unavailable
	case errors.Is(err, types.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrConfiguration):
		code = codes.FailedPrecondition
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
