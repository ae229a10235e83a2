package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/utils"
)

var now = time.Date(2018, 8, 15, 12, 0, 0, 0, time.UTC)

const day = 24 * 60 * 60

func timeline(t *testing.T, spec events.ImageSpec, ages ...events.Age) events.Timeline {
	t.Helper()
	tl, err := events.NewTimeline(now, spec, ages...)
	require.NoError(t, err)
	return tl
}

func evaluate(t *testing.T, in Input, window api.Window) *Report {
	t.Helper()
	report, err := Evaluate(in, window, now)
	require.NoError(t, err)
	return report
}

func TestEvaluateRunningRHEL(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "rhel"}, events.DaysAgo(10)),
	}}
	report := evaluate(t, in, utils.GetTimeRange(now, 0))

	require.False(t, report.Null)
	ov := report.Overview
	assert.Equal(t, 1, *ov.Images)
	assert.Equal(t, 1, *ov.Instances)
	assert.Equal(t, 1, *ov.RHELInstances)
	assert.Equal(t, 0, *ov.OpenShiftInstances)
	assert.Equal(t, float64(10*day), *ov.RHELRuntimeSeconds)
	assert.Equal(t, float64(10*day), *ov.RHELMemorySeconds)
	assert.Equal(t, float64(10*day), *ov.RHELVCPUSeconds)
	assert.Equal(t, 0.0, *ov.OpenShiftRuntimeSeconds)
	assert.Equal(t, 0, *ov.RHELImagesChallenged)
}

func TestEvaluateOutsideWindow(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "rhel"}, events.Days(60, 45)...),
	}}
	report := evaluate(t, in, utils.GetTimeRange(now, 0))

	require.False(t, report.Null)
	assert.Empty(t, report.Images())
	assert.Equal(t, 0, *report.Overview.Images)
	assert.Equal(t, 0, *report.Overview.Instances)
	assert.Equal(t, 0.0, *report.Overview.RHELRuntimeSeconds)
}

func TestEvaluateNullWindows(t *testing.T) {
	in := Input{
		Account: Account{ID: 7, CreatedAt: now.AddDate(0, 0, -3)},
		Timelines: []events.Timeline{
			timeline(t, events.ImageSpec{Tag: "rhel"}, events.Days(2, 1)...),
		},
	}

	tests := []struct {
		name   string
		window api.Window
	}{
		{name: "long before the account", window: utils.GetTimeRange(now, 180)},
		{name: "ends exactly at account creation", window: api.NewWindow(now.AddDate(0, 0, -40), now.AddDate(0, 0, -3))},
		{name: "starts in the future", window: api.NewWindow(now.Add(time.Hour), now.AddDate(0, 0, 2))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := evaluate(t, in, tc.window)
			assert.True(t, report.Null)
			assert.Equal(t, AccountOverview{}, report.Overview)
			assert.Empty(t, report.Images())
			assert.Nil(t, report.TagHours("rhel"))
			assert.Empty(t, report.DimensionHours("rhel"))
		})
	}
}

func TestEvaluateCreatedAtAloneIsEvidence(t *testing.T) {
	in := Input{Account: Account{CreatedAt: now.AddDate(0, 0, -5)}}
	report := evaluate(t, in, utils.GetTimeRange(now, 0))
	require.False(t, report.Null)
	assert.Equal(t, 0, *report.Overview.Images)
}

func TestEvaluateInvertedWindow(t *testing.T) {
	_, err := Evaluate(Input{}, api.NewWindow(now, now.AddDate(0, 0, -1)), now)
	assert.ErrorIs(t, err, utils.ErrInvalidWindow)

	_, err = Evaluate(Input{}, api.NewWindow(now, now), now)
	assert.ErrorIs(t, err, utils.ErrInvalidWindow)
}

func TestEvaluateSharedImage(t *testing.T) {
	image := events.ImageSpec{Tag: "rhel", AMIID: "image1"}
	in := Input{Timelines: []events.Timeline{
		timeline(t, image, events.Days(5, 4)...),
		timeline(t, image, events.Days(3, 2)...),
		timeline(t, image, events.DaysAgo(1)),
	}}
	report := evaluate(t, in, utils.GetTimeRange(now, 0))

	assert.Equal(t, 1, *report.Overview.Images)
	assert.Equal(t, 3, *report.Overview.Instances)
	assert.Equal(t, 3, *report.Overview.RHELInstances)
	assert.Equal(t, float64(3*day), *report.Overview.RHELRuntimeSeconds)

	images := report.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "image1", images[0].AMIID)
	assert.Len(t, images[0].InstanceIDs, 3)
	assert.True(t, images[0].RHEL)
	assert.LessOrEqual(t, *report.Overview.Images, *report.Overview.Instances)
}

func TestEvaluateClipsToWindow(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "openshift", VCPU: 2, MemoryGB: 0.5}, events.Days(40, 20)...),
	}}
	report := evaluate(t, in, utils.GetTimeRange(now, 0))

	ov := report.Overview
	assert.Equal(t, float64(10*day), *ov.OpenShiftRuntimeSeconds)
	assert.Equal(t, float64(5*day), *ov.OpenShiftMemorySeconds)
	assert.Equal(t, float64(20*day), *ov.OpenShiftVCPUSeconds)
	assert.Equal(t, 0, *ov.RHELInstances)
	assert.Equal(t, 1, *ov.OpenShiftInstances)
}

func TestEvaluateClipsAtNow(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "rhel"}, events.DaysAgo(2)),
	}}
	window := api.NewWindow(now.AddDate(0, 0, -10), now.AddDate(0, 0, 10))
	report := evaluate(t, in, window)
	assert.Equal(t, float64(2*day), *report.Overview.RHELRuntimeSeconds)
}

func TestEvaluateGrowsWithWindow(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "rhel"}, events.Days(25, 20, 15, 10, 5)...),
	}}

	start := now.AddDate(0, 0, -30)
	var prev float64
	for end := start.AddDate(0, 0, 1); !end.After(now); end = end.AddDate(0, 0, 1) {
		report := evaluate(t, in, api.NewWindow(start, end))
		if report.Null {
			continue
		}
		got := *report.Overview.RHELRuntimeSeconds
		assert.GreaterOrEqual(t, got, prev, "window ending %s", end)
		assert.LessOrEqual(t, got, api.NewWindow(start, end).Duration().Seconds())
		prev = got
	}
	assert.Equal(t, float64(15*day), prev)
}

func TestEvaluateChallenges(t *testing.T) {
	rhel := timeline(t, events.ImageSpec{Tag: "rhel"}, events.DaysAgo(1))
	plain := timeline(t, events.ImageSpec{}, events.DaysAgo(1))
	idle := timeline(t, events.ImageSpec{Tag: "openshift"}, events.Days(60, 50)...)

	in := Input{Timelines: []events.Timeline{rhel, plain, idle}}
	in.Challenge(rhel.Image.AMIID, "rhel")
	in.Challenge(plain.Image.AMIID, "openshift")
	in.Challenge(idle.Image.AMIID, "openshift")

	report := evaluate(t, in, utils.GetTimeRange(now, 0))
	ov := report.Overview

	assert.Equal(t, 0, *ov.RHELInstances)
	assert.Equal(t, 0.0, *ov.RHELRuntimeSeconds)
	assert.Equal(t, 1, *ov.OpenShiftInstances)
	assert.Equal(t, float64(day), *ov.OpenShiftRuntimeSeconds)
	assert.Equal(t, 1, *ov.RHELImagesChallenged)
	assert.Equal(t, 2, *ov.OpenShiftImagesChallenged)

	challenged := report.ByAMI[rhel.Image.AMIID]
	assert.False(t, challenged.RHEL)
	assert.True(t, challenged.RHELChallenged)
	assert.True(t, challenged.Detected.RHEL)

	flipped := report.ByAMI[plain.Image.AMIID]
	assert.True(t, flipped.OpenShift)
	assert.True(t, flipped.OpenShiftChallenged)
	assert.False(t, flipped.Detected.OpenShift)

	_, ok := report.ByAMI[idle.Image.AMIID]
	assert.False(t, ok, "images without runtime are not listed")
}

func TestEvaluateDeterministic(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "rhel,openshift"}, events.Days(12, 3)...),
		timeline(t, events.ImageSpec{Tag: "windows"}, events.DaysAgo(4)),
	}}
	window := utils.GetTimeRange(now, 0)
	first := evaluate(t, in, window)
	second := evaluate(t, in, window)
	assert.Equal(t, first, second)
}

func TestEvaluateRejectsBrokenTimeline(t *testing.T) {
	in := Input{Timelines: []events.Timeline{{
		InstanceID: "i-broken",
		Image:      events.ImageSpec{AMIID: "ami-1"},
		Events: []events.Event{
			{Time: now.Add(-2 * time.Hour), Type: events.PowerOff},
		},
	}}}
	_, err := Evaluate(in, utils.GetTimeRange(now, 0), now)
	assert.ErrorIs(t, err, events.ErrNotAlternating)
}

func TestDimensionHours(t *testing.T) {
	in := Input{Timelines: []events.Timeline{
		timeline(t, events.ImageSpec{Tag: "rhel", VCPU: 2, MemoryGB: 0.5}, events.At(now.Add(-(10*time.Hour + 40*time.Minute)))),
		timeline(t, events.ImageSpec{Tag: "openshift"}, events.DaysAgo(1)),
	}}
	report := evaluate(t, in, utils.GetTimeRange(now, 0))

	assert.Equal(t, map[Dimension]int{
		DimensionInstance: 11,
		DimensionMemory:   5,
		DimensionVCPU:     21,
	}, report.DimensionHours("rhel"))

	assert.Equal(t, map[Dimension]int{
		DimensionInstance: 24,
		DimensionMemory:   24,
		DimensionVCPU:     24,
	}, report.DimensionHours("openshift"))

	require.NotNil(t, report.TagHours("rhel"))
	assert.Equal(t, 10, *report.TagHours("rhel"))
	assert.Equal(t, 24, *report.TagHours("openshift"))
	assert.Nil(t, report.TagHours("windows"))
}

func TestDimensionLabels(t *testing.T) {
	for _, d := range Dimensions {
		assert.NotEqual(t, string(d), d.Label())
	}
}

func TestExpectedHoursInPast30Days(t *testing.T) {
	hours, spare, evts, err := ExpectedHoursInPast30Days(now, events.Days(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 24.0, hours)
	assert.Equal(t, 0.0, spare)
	assert.Len(t, evts, 2)
	assert.Equal(t, 24, utils.RoundHours(hours, spare))

	hours, spare, _, err = ExpectedHoursInWindow(now, utils.GetTimeRange(now, 0), events.Days(45, 29.5))
	require.NoError(t, err)
	assert.Equal(t, 12.0, hours)
	assert.Equal(t, 0.0, spare)

	_, _, _, err = ExpectedHoursInPast30Days(now, events.Days(1, 2))
	assert.ErrorIs(t, err, events.ErrNotIncreasing)
}
