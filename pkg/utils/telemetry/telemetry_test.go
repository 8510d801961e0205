package telemetry_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kristal/pkg/utils/telemetry"
)

func TestInitExportsSpansAndMetrics(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	shutdown, err := telemetry.Init(ctx, &buf)
	gt.NoError(t, err)

	_, span := telemetry.Tracer().Start(ctx, "agent.SendMessage")
	telemetry.RecordCall(ctx, "agent.SendMessage", 120*time.Millisecond, nil)
	span.End()

	gt.NoError(t, shutdown(ctx))

	out := buf.String()
	gt.S(t, out).Contains("agent.SendMessage")
	gt.S(t, out).Contains("kristal.agent.calls")
	gt.S(t, out).Contains("kristal.agent.duration")
}
