// Package remote talks to a network speech recognizer over gRPC.
//
// The service exposes one unary method. Requests carry s16le mono PCM in a
// google.protobuf.BytesValue with the sample rate and language in metadata;
// the reply is the transcript as a google.protobuf.StringValue.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/jarvis/internal/audio"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified recognizer service.
	ServiceName = "jarvis.speech.v1.Recognizer"
	// RecognizeMethod is the full method path used by Transcribe.
	RecognizeMethod = "/" + ServiceName + "/Recognize"

	sampleRateKey = "x-sample-rate"
	languageKey   = "x-language"

	defaultDialTimeout = 3 * time.Second
	defaultCallTimeout = 15 * time.Second
)

// Config controls dialing and per-call limits.
type Config struct {
	Endpoint    string
	Language    string
	DialTimeout time.Duration
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if strings.TrimSpace(c.Language) == "" {
		c.Language = "en-US"
	}
	return c
}

// Client is a connected recognizer client. It is safe for concurrent use.
type Client struct {
	conn *grpc.ClientConn
	cfg  Config
}

// Dial connects to cfg.Endpoint and waits up to DialTimeout for Ready.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Endpoint == "" {
		return nil, errors.New("remote recognizer endpoint is empty")
	}

	conn, err := grpc.NewClient(
		cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer grpc %q: %w", cfg.Endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for recognizer grpc readiness: %w", err)
	}

	return &Client{conn: conn, cfg: cfg}, nil
}

// Probe reports whether a recognizer at cfg.Endpoint becomes Ready.
func Probe(ctx context.Context, cfg Config) error {
	client, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	return client.Close()
}

// Transcribe sends one utterance and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if c == nil || c.conn == nil {
		return "", errors.New("remote recognizer is not connected")
	}
	if len(pcm) == 0 {
		return "", nil
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	callCtx = metadata.AppendToOutgoingContext(callCtx,
		sampleRateKey, strconv.Itoa(sampleRate),
		languageKey, c.cfg.Language,
	)

	req := wrapperspb.Bytes(audio.Bytes16(pcm))
	reply := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(callCtx, RecognizeMethod, req, reply); err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.TrimSpace(reply.GetValue()), nil
}

// Endpoint returns the dialed address.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
