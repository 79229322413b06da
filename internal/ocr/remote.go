package ocr

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/resilience"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/trace"
)

// ExtractTextMethod is the full gRPC method name served by the OCR sidecar.
const ExtractTextMethod = "/copilot.ocr.v1.OCRService/ExtractText"

// FormatMetadataKey carries the image format alongside the raw bytes.
const FormatMetadataKey = "x-image-format"

const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
	DefaultRemoteTimeout    = 3 * time.Second
)

type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
	Close() error
}

// RemoteClient calls an OCR sidecar over gRPC. The request is a BytesValue
// holding the image and the response a StringValue holding the text.
type RemoteClient struct {
	conn    invoker
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

// NewRemote dials addr lazily; the first call establishes the connection.
func NewRemote(addr string, timeout time.Duration) (*RemoteClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "create OCR client").
			WithMetadata("addr", addr)
	}
	return newRemote(conn, timeout), nil
}

func newRemote(conn invoker, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteClient{
		conn:    conn,
		breaker: resilience.New(resilience.OCRConfig()),
		retry:   resilience.OCRRetryConfig(),
		timeout: timeout,
	}
}

// Breaker exposes the circuit breaker, for health reporting.
func (c *RemoteClient) Breaker() *resilience.Breaker { return c.breaker }

func (c *RemoteClient) ExtractText(ctx context.Context, image []byte, format string) (string, error) {
	if len(image) == 0 {
		return "", apperrors.New(apperrors.CodeOCRInvalidImage, "empty image")
	}
	return resilience.ExecuteWithResult(c.breaker, func() (string, error) {
		return resilience.RetryWithResult(ctx, c.retry, func() (string, error) {
			return c.call(ctx, image, format)
		})
	})
}

func (c *RemoteClient) call(ctx context.Context, image []byte, format string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, FormatMetadataKey, format)

	resp := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, ExtractTextMethod, wrapperspb.Bytes(image), resp); err != nil {
		appErr := apperrors.FromGRPCError(err)
		if appErr.Code == apperrors.CodeUnknown {
			appErr.Code = apperrors.CodeOCRFailed
		}
		appErr.Cause = err
		return "", appErr
	}
	return resp.GetValue(), nil
}

func (c *RemoteClient) Close() error {
	return c.conn.Close()
}
