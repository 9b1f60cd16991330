package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type codedErr struct{ code string }

func (e codedErr) Error() string     { return "coded failure" }
func (e codedErr) ErrorCode() string { return e.code }

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCaptureError_CountsByCode(t *testing.T) {
	buf := captureLogs(t)
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("PROFILE_TIMEOUT"))

	CaptureError(context.Background(), codedErr{code: "PROFILE_TIMEOUT"}, slog.Uint64("user_id", 4))

	after := testutil.ToFloat64(ErrorsTotal.WithLabelValues("PROFILE_TIMEOUT"))
	assert.Equal(t, before+1, after)
	assert.Contains(t, buf.String(), "code=PROFILE_TIMEOUT")
	assert.Contains(t, buf.String(), "user_id=4")
}

func TestCaptureError_WrappedUnknown(t *testing.T) {
	captureLogs(t)
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("UNKNOWN"))
	CaptureError(context.Background(), errors.New("plain"))
	assert.Equal(t, before+1, testutil.ToFloat64(ErrorsTotal.WithLabelValues("UNKNOWN")))
}

func TestCaptureError_NilIsIgnored(t *testing.T) {
	buf := captureLogs(t)
	CaptureError(context.Background(), nil)
	assert.Empty(t, buf.String())
}
