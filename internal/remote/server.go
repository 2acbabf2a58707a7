package remote

import (
	"context"
	"strconv"
	"strings"

	"github.com/rbright/jarvis/internal/audio"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Request is one decoded recognize call.
type Request struct {
	PCM        []int16
	SampleRate int
	Language   string
}

// RecognizeFunc answers one recognize call.
type RecognizeFunc func(context.Context, Request) (string, error)

// Register installs fn as the recognizer service on server.
func Register(server *grpc.Server, fn RecognizeFunc) {
	server.RegisterService(&serviceDesc, fn)
}

type recognizerServer interface{}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*recognizerServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Recognize",
		Handler:    recognizeHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &wrapperspb.BytesValue{}
	if err := dec(in); err != nil {
		return nil, err
	}
	fn := srv.(RecognizeFunc)
	call := func(ctx context.Context, req any) (any, error) {
		text, err := fn(ctx, decodeRequest(ctx, req.(*wrapperspb.BytesValue)))
		if err != nil {
			return nil, err
		}
		return wrapperspb.String(text), nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecognizeMethod}
	return interceptor(ctx, in, info, call)
}

func decodeRequest(ctx context.Context, in *wrapperspb.BytesValue) Request {
	req := Request{PCM: audio.PCM16(in.GetValue()), SampleRate: audio.DefaultSampleRate}
	md, _ := metadata.FromIncomingContext(ctx)
	if values := md.Get(sampleRateKey); len(values) > 0 {
		if rate, err := strconv.Atoi(strings.TrimSpace(values[0])); err == nil && rate > 0 {
			req.SampleRate = rate
		}
	}
	if values := md.Get(languageKey); len(values) > 0 {
		req.Language = strings.TrimSpace(values[0])
	}
	return req
}
