package oracle

import (
	"math"
	"time"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/utils"
)

// Dimension is a unit usage graphs can be drawn in.
type Dimension string

const (
	DimensionInstance Dimension = "instance"
	DimensionMemory   Dimension = "gb"
	DimensionVCPU     Dimension = "cpu"
)

// Label is the dropdown entry that selects the dimension.
func (d Dimension) Label() string {
	switch d {
	case DimensionInstance:
		return "Instance Hours"
	case DimensionMemory:
		return "GB Memory Hours"
	case DimensionVCPU:
		return "Core Hours"
	}
	return string(d)
}

// Dimensions lists every dimension.
var Dimensions = []Dimension{DimensionInstance, DimensionMemory, DimensionVCPU}

// DimensionHours returns the rounded hours a usage graph for tag shows in
// each dimension.
//
// Each instance's runtime is split into whole hours and spare minutes and
// both components are weighted and summed separately. Memory weighting rounds
// each summed component up before the final RoundHours; vCPU weighting does
// not round.
func (r *Report) DimensionHours(tag string) map[Dimension]int {
	out := map[Dimension]int{}
	if r.Null {
		return out
	}

	var hours, minutes, memHours, memMinutes, cpuHours, cpuMinutes float64
	for _, u := range r.Instances {
		iu, ok := r.ByAMI[u.AMIID]
		if !ok || !iu.HasTag(tag) || u.RuntimeSeconds <= 0 {
			continue
		}
		h, m := utils.SplitHours(u.RuntimeSeconds)
		hours += h
		minutes += m
		memHours += h * u.MemoryGB
		memMinutes += m * u.MemoryGB
		cpuHours += h * float64(u.VCPU)
		cpuMinutes += m * float64(u.VCPU)
	}

	out[DimensionInstance] = utils.RoundHours(hours, minutes)
	out[DimensionMemory] = utils.RoundHours(math.Ceil(memHours), math.Ceil(memMinutes))
	out[DimensionVCPU] = utils.RoundHours(cpuHours, cpuMinutes)
	return out
}

// TagHours is the whole number of hours (truncated) of tag runtime, the value
// summary cards display. Nil when the report is null.
func (r *Report) TagHours(tag string) *int {
	var seconds *float64
	switch tag {
	case "rhel":
		seconds = r.Overview.RHELRuntimeSeconds
	case "openshift":
		seconds = r.Overview.OpenShiftRuntimeSeconds
	}
	if seconds == nil {
		return nil
	}
	return intPtr(int(*seconds / 3600))
}

// ExpectedHoursInWindow returns the whole hours and spare minutes a single
// timeline described by ages runs inside window, observed at now.
func ExpectedHoursInWindow(now time.Time, window api.Window, ages []events.Age) (hours, spareMinutes float64, evts []events.Event, err error) {
	evts, err = events.Synthesize(now, ages)
	if err != nil {
		return 0, 0, nil, err
	}
	intervals, err := events.Intervals(evts, now)
	if err != nil {
		return 0, 0, nil, err
	}
	bound := window
	if now.Before(bound.End) {
		bound.End = now
	}
	var runtime time.Duration
	for _, iv := range intervals {
		runtime += bound.Overlap(iv)
	}
	hours, spareMinutes = utils.SplitHours(runtime.Seconds())
	return hours, spareMinutes, evts, nil
}

// ExpectedHoursInPast30Days is ExpectedHoursInWindow over the default
// report window ending at now.
func ExpectedHoursInPast30Days(now time.Time, ages []events.Age) (hours, spareMinutes float64, evts []events.Event, err error) {
	return ExpectedHoursInWindow(now, utils.GetTimeRange(now, 0), ages)
}
