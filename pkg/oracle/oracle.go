// Package oracle predicts the usage reports the metering service should
// produce for synthetic instance timelines.
//
// Evaluation is pure: the same input, window and evaluation time always give
// the same report. A report is compared against the service with set
// semantics; the order of images carries no meaning.
package oracle

import (
	"fmt"
	"sort"
	"time"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/utils"
)

// Account is the cloud account the timelines belong to.
type Account struct {
	ID int
	// CreatedAt is when the service started observing the account. Zero
	// means unknown, in which case only events bound the evidence.
	CreatedAt time.Time
}

// Challenge records which tag classifications a user disputes on an image.
type Challenge struct {
	RHEL      bool
	OpenShift bool
}

// Input is everything the service knows about one account.
type Input struct {
	Account   Account
	Timelines []events.Timeline
	// Challenges is keyed by AMI id.
	Challenges map[string]Challenge
}

// Challenge marks tag ("rhel" or "openshift") of image amiID as challenged.
func (in *Input) Challenge(amiID, tag string) {
	if in.Challenges == nil {
		in.Challenges = map[string]Challenge{}
	}
	c := in.Challenges[amiID]
	switch tag {
	case "rhel":
		c.RHEL = true
	case "openshift":
		c.OpenShift = true
	}
	in.Challenges[amiID] = c
}

// InstanceUsage is one instance's clipped runtime.
type InstanceUsage struct {
	InstanceID     string
	AMIID          string
	RuntimeSeconds float64
	VCPU           int
	MemoryGB       float64
}

// ImageUsage is the expected image report entry.
type ImageUsage struct {
	AMIID string
	// Detected are the tags the image carries before challenges.
	Detected            events.Tags
	RHEL                bool
	OpenShift           bool
	RHELChallenged      bool
	OpenShiftChallenged bool
	InstanceIDs         []string
	RuntimeSeconds      float64
	MemorySeconds       float64
	VCPUSeconds         float64
}

// HasTag reports the effective tag ("rhel" or "openshift").
func (iu ImageUsage) HasTag(tag string) bool {
	switch tag {
	case "rhel":
		return iu.RHEL
	case "openshift":
		return iu.OpenShift
	}
	return false
}

// AccountOverview is the expected account summary. Nil fields mean the
// service has no evidence for the window and must report null.
type AccountOverview struct {
	Images                    *int
	Instances                 *int
	RHELInstances             *int
	OpenShiftInstances        *int
	RHELRuntimeSeconds        *float64
	OpenShiftRuntimeSeconds   *float64
	RHELMemorySeconds         *float64
	OpenShiftMemorySeconds    *float64
	RHELVCPUSeconds           *float64
	OpenShiftVCPUSeconds      *float64
	RHELImagesChallenged      *int
	OpenShiftImagesChallenged *int
}

// Report is the oracle's prediction for one account and window.
type Report struct {
	Window   api.Window
	Now      time.Time
	Overview AccountOverview
	// Null is true when the window holds no evidence.
	Null bool
	// ByAMI holds the images with in-window runtime.
	ByAMI     map[string]ImageUsage
	Instances []InstanceUsage
}

// Images returns the image entries ordered by AMI id.
func (r *Report) Images() []ImageUsage {
	out := make([]ImageUsage, 0, len(r.ByAMI))
	for _, iu := range r.ByAMI {
		out = append(out, iu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AMIID < out[j].AMIID })
	return out
}

// Evaluate predicts the service's reports for in over window, as observed
// at now. Running instances count up to now.
func Evaluate(in Input, window api.Window, now time.Time) (*Report, error) {
	if err := utils.ValidateWindow(window); err != nil {
		return nil, err
	}
	now = now.UTC()

	report := &Report{
		Window: window,
		Now:    now,
		ByAMI:  map[string]ImageUsage{},
	}

	if noEvidence(in, window, now) {
		report.Null = true
		return report, nil
	}

	usages, err := clippedUsage(in.Timelines, window, now)
	if err != nil {
		return nil, err
	}
	report.Instances = usages

	instances := map[string]bool{}
	rhelInstances := map[string]bool{}
	openshiftInstances := map[string]bool{}
	rhelChallenged := map[string]bool{}
	openshiftChallenged := map[string]bool{}
	detected := map[string]events.Tags{}
	var rhelTotals, openshiftTotals totals

	for _, tl := range in.Timelines {
		detected[tl.Image.AMIID] = tl.Image.Tags()
		c := in.Challenges[tl.Image.AMIID]
		if c.RHEL {
			rhelChallenged[tl.Image.AMIID] = true
		}
		if c.OpenShift {
			openshiftChallenged[tl.Image.AMIID] = true
		}
	}

	for _, u := range usages {
		if u.RuntimeSeconds <= 0 {
			continue
		}
		tags := detected[u.AMIID]
		c := in.Challenges[u.AMIID]
		rhel := tags.RHEL != c.RHEL
		openshift := tags.OpenShift != c.OpenShift

		iu, ok := report.ByAMI[u.AMIID]
		if !ok {
			iu = ImageUsage{
				AMIID:               u.AMIID,
				Detected:            tags,
				RHEL:                rhel,
				OpenShift:           openshift,
				RHELChallenged:      c.RHEL,
				OpenShiftChallenged: c.OpenShift,
			}
		}
		iu.InstanceIDs = appendUnique(iu.InstanceIDs, u.InstanceID)
		iu.RuntimeSeconds += u.RuntimeSeconds
		iu.MemorySeconds += u.RuntimeSeconds * u.MemoryGB
		iu.VCPUSeconds += u.RuntimeSeconds * float64(u.VCPU)
		report.ByAMI[u.AMIID] = iu

		instances[u.InstanceID] = true
		if rhel {
			rhelInstances[u.InstanceID] = true
			rhelTotals.add(u)
		}
		if openshift {
			openshiftInstances[u.InstanceID] = true
			openshiftTotals.add(u)
		}
	}

	for ami := range report.ByAMI {
		sort.Strings(report.ByAMI[ami].InstanceIDs)
	}

	report.Overview = AccountOverview{
		Images:                    intPtr(len(report.ByAMI)),
		Instances:                 intPtr(len(instances)),
		RHELInstances:             intPtr(len(rhelInstances)),
		OpenShiftInstances:        intPtr(len(openshiftInstances)),
		RHELRuntimeSeconds:        floatPtr(rhelTotals.runtime),
		OpenShiftRuntimeSeconds:   floatPtr(openshiftTotals.runtime),
		RHELMemorySeconds:         floatPtr(rhelTotals.memory),
		OpenShiftMemorySeconds:    floatPtr(openshiftTotals.memory),
		RHELVCPUSeconds:           floatPtr(rhelTotals.vcpu),
		OpenShiftVCPUSeconds:      floatPtr(openshiftTotals.vcpu),
		RHELImagesChallenged:      intPtr(len(rhelChallenged)),
		OpenShiftImagesChallenged: intPtr(len(openshiftChallenged)),
	}
	return report, nil
}

// noEvidence reports a window that ends before the account or any of its
// events existed, or that starts after now.
func noEvidence(in Input, window api.Window, now time.Time) bool {
	if !window.Start.Before(now) {
		return true
	}
	var first time.Time
	if !in.Account.CreatedAt.IsZero() {
		first = in.Account.CreatedAt
	}
	for _, tl := range in.Timelines {
		if t := tl.First(); !t.IsZero() && (first.IsZero() || t.Before(first)) {
			first = t
		}
	}
	if first.IsZero() {
		return false
	}
	return !window.End.After(first)
}

// clippedUsage computes each instance's runtime inside window, closing
// running instances at now and never counting time after now.
func clippedUsage(timelines []events.Timeline, window api.Window, now time.Time) ([]InstanceUsage, error) {
	bound := window
	if now.Before(bound.End) {
		bound.End = now
	}

	byInstance := map[string]int{}
	var usages []InstanceUsage
	for _, tl := range timelines {
		intervals, err := events.Intervals(tl.Events, now)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", tl.InstanceID, err)
		}
		var runtime time.Duration
		for _, iv := range intervals {
			runtime += bound.Overlap(iv)
		}

		idx, ok := byInstance[tl.InstanceID]
		if !ok {
			idx = len(usages)
			byInstance[tl.InstanceID] = idx
			usages = append(usages, InstanceUsage{
				InstanceID: tl.InstanceID,
				AMIID:      tl.Image.AMIID,
				VCPU:       tl.Image.VCPU,
				MemoryGB:   tl.Image.MemoryGB,
			})
		}
		usages[idx].RuntimeSeconds += runtime.Seconds()
	}
	return usages, nil
}

// totals accumulates runtime and its memory and vCPU weighted forms.
type totals struct {
	runtime float64
	memory  float64
	vcpu    float64
}

func (t *totals) add(u InstanceUsage) {
	t.runtime += u.RuntimeSeconds
	t.memory += u.RuntimeSeconds * u.MemoryGB
	t.vcpu += u.RuntimeSeconds * float64(u.VCPU)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
