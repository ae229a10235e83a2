package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/oracle"
	"github.com/cloudigrade/integrade/pkg/utils"
)

var now = time.Date(2018, 8, 15, 12, 0, 0, 0, time.UTC)

func report(t *testing.T, window api.Window) *oracle.Report {
	t.Helper()
	tl, err := events.NewTimeline(now, events.ImageSpec{Tag: "rhel", AMIID: "ami-rendered"}, events.DaysAgo(10))
	require.NoError(t, err)
	r, err := oracle.Evaluate(oracle.Input{Timelines: []events.Timeline{tl}}, window, now)
	require.NoError(t, err)
	return r
}

func TestTables(t *testing.T) {
	r := report(t, utils.GetTimeRange(now, 0))
	var buf bytes.Buffer

	Overview(&buf, "Expected", r)
	Images(&buf, r)
	Graphs(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "864,000")
	assert.Contains(t, out, "ami-rendered")
	assert.Contains(t, out, "Instance Hours")
	assert.Contains(t, out, "240")
}

func TestNullTables(t *testing.T) {
	r := report(t, utils.GetTimeRange(now, 180))
	require.True(t, r.Null)
	var buf bytes.Buffer

	Overview(&buf, "Expected", r)
	Images(&buf, r)
	Graphs(&buf, r)
	assert.Contains(t, buf.String(), "N/A")
	assert.Contains(t, buf.String(), "(none)")
}

func TestCompareOverview(t *testing.T) {
	r := report(t, utils.GetTimeRange(now, 0))
	one, zero := 1, 0
	runtime := 864000.2
	act := api.AccountOverview{
		Images:             &one,
		Instances:          &one,
		RHELInstances:      &zero,
		RHELRuntimeSeconds: &runtime,
	}

	rows := CompareOverview(r.Overview, act, 0.0001)
	require.Len(t, rows, 12)

	var buf bytes.Buffer
	failed := Compare(&buf, "Check", rows)
	// rhel_instances differs and every other field but images, instances and
	// rhel runtime is null on the actual side
	assert.Equal(t, 9, failed)
	assert.Contains(t, buf.String(), "MISMATCH")
}
