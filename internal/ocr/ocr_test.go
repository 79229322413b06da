package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/resilience"
)

type mockOCR struct {
	text  string
	err   error
	calls int
}

func (m *mockOCR) ExtractText(context.Context, []byte, string) (string, error) {
	m.calls++
	return m.text, m.err
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPreprocess(t *testing.T) {
	out, err := Preprocess(testPNG(t, 20, 10), DefaultOptions())
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("bounds = %v, want 40x20", b)
	}
	r, g, bl, _ := img.At(5, 5).RGBA()
	if r != g || g != bl {
		t.Errorf("pixel not grayscale: %d %d %d", r, g, bl)
	}
}

func TestPreprocessCrop(t *testing.T) {
	opts := DefaultOptions()
	opts.Crop = image.Rect(5, 2, 15, 8)
	opts.Scale = 1

	out, err := Preprocess(testPNG(t, 20, 10), opts)
	if err != nil {
		t.Fatal(err)
	}
	img, _ := png.Decode(bytes.NewReader(out))
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 6 {
		t.Errorf("cropped bounds = %v, want 10x6", b)
	}

	opts.Crop = image.Rect(100, 100, 200, 200)
	if _, err := Preprocess(testPNG(t, 20, 10), opts); !apperrors.IsCode(err, apperrors.CodeOCRInvalidImage) {
		t.Errorf("crop outside frame error = %v", err)
	}
}

func TestPreprocessInvalid(t *testing.T) {
	_, err := Preprocess([]byte("not an image"), DefaultOptions())
	if !apperrors.IsCode(err, apperrors.CodeOCRInvalidImage) {
		t.Errorf("error = %v, want OCR_INVALID_IMAGE", err)
	}
}

func TestFallback(t *testing.T) {
	primary := &mockOCR{err: errors.New("sidecar down")}
	secondary := &mockOCR{text: "Reject ride"}
	f := Fallback{Primary: primary, Secondary: secondary}

	text, err := f.ExtractText(context.Background(), []byte{1}, "png")
	if err != nil || text != "Reject ride" {
		t.Errorf("ExtractText = %q, %v", text, err)
	}

	primary.err = nil
	primary.text = "primary"
	if text, _ := f.ExtractText(context.Background(), []byte{1}, "png"); text != "primary" || secondary.calls != 1 {
		t.Errorf("secondary should not run when primary succeeds: %q calls=%d", text, secondary.calls)
	}
}

func TestTimed(t *testing.T) {
	m := &mockOCR{text: "ok"}
	if text, _ := (Timed{m}).ExtractText(context.Background(), []byte{1}, "png"); text != "ok" || m.calls != 1 {
		t.Errorf("Timed should delegate, got %q", text)
	}
}

type fakeConn struct {
	responses []error
	text      string
	calls     int
	method    string
	format    string
	payload   []byte
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	f.calls++
	f.method = method
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if v := md.Get(FormatMetadataKey); len(v) > 0 {
			f.format = v[0]
		}
	}
	f.payload = args.(*wrapperspb.BytesValue).GetValue()
	if len(f.responses) > 0 {
		err := f.responses[0]
		f.responses = f.responses[1:]
		if err != nil {
			return err
		}
	}
	reply.(*wrapperspb.StringValue).Value = f.text
	return nil
}

func (f *fakeConn) Close() error { return nil }

func fastRemote(conn invoker) *RemoteClient {
	c := newRemote(conn, 0)
	c.retry.BaseDelay = 1
	c.retry.MaxDelay = 1
	return c
}

func TestRemoteExtractText(t *testing.T) {
	conn := &fakeConn{text: "$12.34\nAccept"}
	c := fastRemote(conn)

	text, err := c.ExtractText(context.Background(), []byte{0x89, 'P'}, "png")
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if text != "$12.34\nAccept" {
		t.Errorf("text = %q", text)
	}
	if conn.method != ExtractTextMethod || conn.format != "png" || len(conn.payload) != 2 {
		t.Errorf("call = %s format=%s payload=%v", conn.method, conn.format, conn.payload)
	}
}

func TestRemoteRetriesTransient(t *testing.T) {
	conn := &fakeConn{
		text:      "ok",
		responses: []error{status.Error(codes.Unavailable, "warming up"), nil},
	}
	text, err := fastRemote(conn).ExtractText(context.Background(), []byte{1}, "png")
	if err != nil || text != "ok" || conn.calls != 2 {
		t.Errorf("ExtractText = %q, %v after %d calls", text, err, conn.calls)
	}
}

func TestRemotePermanentError(t *testing.T) {
	conn := &fakeConn{responses: []error{status.Error(codes.InvalidArgument, "bad image")}}
	_, err := fastRemote(conn).ExtractText(context.Background(), []byte{1}, "png")
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("error = %v, want INVALID_ARGUMENT", err)
	}
	if conn.calls != 1 {
		t.Errorf("permanent errors should not be retried, got %d calls", conn.calls)
	}
}

func TestRemoteBreakerOpens(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "down")
	conn := &fakeConn{}
	for i := 0; i < 20; i++ {
		conn.responses = append(conn.responses, unavailable)
	}
	c := fastRemote(conn)

	for i := 0; i < resilience.OCRThreshold; i++ {
		_, _ = c.ExtractText(context.Background(), []byte{1}, "png")
	}
	before := conn.calls
	_, err := c.ExtractText(context.Background(), []byte{1}, "png")
	if !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("error = %v, want ErrOpen", err)
	}
	if conn.calls != before {
		t.Error("open breaker should not reach the sidecar")
	}
}

func TestRemoteEmptyImage(t *testing.T) {
	conn := &fakeConn{}
	_, err := fastRemote(conn).ExtractText(context.Background(), nil, "png")
	if !apperrors.IsCode(err, apperrors.CodeOCRInvalidImage) || conn.calls != 0 {
		t.Errorf("error = %v, calls = %d", err, conn.calls)
	}
}
