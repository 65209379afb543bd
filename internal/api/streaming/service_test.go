package streaming

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/devices"
	"github.com/KevinKickass/OpenVNA/internal/profiles"
	"github.com/KevinKickass/OpenVNA/internal/transport"
	"github.com/KevinKickass/OpenVNA/internal/transport/transporttest"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// anritsu scripts a 37369D answering a 51-point full-pair acquisition.
func anritsu() *transporttest.Fake {
	fake := transporttest.New().
		Respond("*IDN?;", "ANRITSU,37369D,123456,3.5").
		Respond("FMX?", "0").
		Respond("SWP?", "SWP").
		Respond("STR?", "1000000").
		Respond("STP?", "3000000").
		Respond("ONP", "51")

	payload := make([]byte, 0, 51*4*16)
	for i := 0; i < 51*4*2; i++ {
		payload = binary.LittleEndian.AppendUint64(payload, math.Float64bits(float64(i)))
	}
	fake.RespondBlock("OS2P;", payload)
	return fake
}

type harness struct {
	streamer *EventStreamer
	sessions *devices.Manager
	conn     *grpc.ClientConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()

	loader, err := profiles.NewLoader(nil)
	require.NoError(t, err)

	streamer := NewEventStreamer(logger)
	dial := func(ctx context.Context, cfg config.InstrumentConfig) (transport.Transport, error) {
		return anritsu(), nil
	}
	sessions := devices.NewManager(loader, logger,
		devices.WithDialer(dial),
		devices.WithPublisher(streamer))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewInstrumentService(streamer, sessions, logger))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{streamer: streamer, sessions: sessions, conn: conn}
}

func (h *harness) openBench(t *testing.T) {
	t.Helper()
	_, err := h.sessions.Open(context.Background(), config.InstrumentConfig{
		Name:         "bench",
		Profile:      "anritsu-37xxxd",
		Address:      "192.168.1.30:5025",
		SweepTimeout: time.Second,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
}

func (h *harness) acquire(ctx context.Context, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	err = h.conn.Invoke(ctx, "/"+ServiceName+"/Acquire", in, out)
	return out, err
}

func (h *harness) subscribe(t *testing.T, ctx context.Context, events ...any) grpc.ClientStream {
	t.Helper()
	stream, err := h.conn.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/Subscribe")
	require.NoError(t, err)

	req, err := structpb.NewStruct(map[string]any{"events": events})
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(req))
	require.NoError(t, stream.CloseSend())

	require.Eventually(t, func() bool { return h.streamer.SubscriberCount() == 1 },
		2*time.Second, 5*time.Millisecond)
	return stream
}

func TestAcquireReturnsMeasurement(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	h.openBench(t)

	out, err := h.acquire(ctx, map[string]any{"instrument": "bench"})
	require.NoError(t, err)

	got := out.AsMap()
	assert.Equal(t, []any{1.0, 2.0}, got["ports"])
	assert.Len(t, got["axis_hz"], 51)
	assert.Len(t, got["s"], 51)
}

func TestAcquireErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	h.openBench(t)

	tests := []struct {
		name string
		req  map[string]any
		code codes.Code
	}{
		{"missing instrument", map[string]any{}, codes.InvalidArgument},
		{"unknown instrument", map[string]any{"instrument": "nope"}, codes.NotFound},
		{"unknown channel", map[string]any{"instrument": "bench", "channel": 7}, codes.NotFound},
		{"unsupported ports", map[string]any{"instrument": "bench", "ports": []any{1, 2, 3}}, codes.FailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.acquire(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestSubscribeStreamsFilteredEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	h.openBench(t)

	stream := h.subscribe(t, ctx, devices.EventAcquisitionCompleted)

	h.streamer.Publish(devices.EventPropertyChanged, devices.PropertyChange{Name: "bench", Property: "points"})
	_, err := h.acquire(ctx, map[string]any{"instrument": "bench", "ports": []any{2, 1}})
	require.NoError(t, err)

	msg := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(msg))

	got := msg.AsMap()
	assert.Equal(t, devices.EventAcquisitionCompleted, got["type"])
	_, err = time.Parse(time.RFC3339Nano, got["timestamp"].(string))
	require.NoError(t, err)

	data := got["data"].(map[string]any)
	assert.Equal(t, "bench", data["instrument"])
	assert.Equal(t, 51.0, data["points"])
	assert.Equal(t, []any{1.0, 2.0}, data["ports"])
}

func TestStreamerCloseEndsSubscriptions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)

	stream := h.subscribe(t, ctx)
	h.streamer.Close()

	err := stream.RecvMsg(new(structpb.Struct))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, h.streamer.SubscriberCount())

	late := h.streamer.Subscribe(nil)
	_, open := <-late
	assert.False(t, open)
}

func TestStreamerSkipsFullSubscribers(t *testing.T) {
	s := NewEventStreamer(zap.NewNop())
	ch := s.Subscribe(nil)

	for i := 0; i < 150; i++ {
		s.Publish(devices.EventPropertyChanged, devices.PropertyChange{Channel: i})
	}
	assert.Len(t, ch, 100)

	s.Unsubscribe(ch)
	s.Unsubscribe(ch)
	assert.Equal(t, 0, s.SubscriberCount())
}

func TestStreamerDropsNonObjectPayloads(t *testing.T) {
	s := NewEventStreamer(zap.NewNop())
	ch := s.Subscribe(nil)

	s.Publish("bad", []int{1, 2})
	s.Publish("good", map[string]int{"n": 1})

	ev := <-ch
	assert.Equal(t, "good", ev.Type)
	assert.Equal(t, 1.0, ev.Payload.AsMap()["n"])
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("instrument x: %w", devices.ErrNotFound), codes.NotFound},
		{&types.ProtocolError{Command: "*IDN?", Err: errors.New("closed")}, codes.Unavailable},
		{&types.ValidationError{Value: 99999, Domain: "points"}, codes.InvalidArgument},
		{&types.ConfigurationError{Op: "get network", Reason: "unsupported"}, codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(statusError(tt.err)))
		})
	}
}
