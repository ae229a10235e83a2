package assert

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/env"
	"github.com/cloudigrade/integrade/pkg/oracle"
)

// TestingT is the part of *testing.T an Asserter reports through.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// ErrorPct returns the difference between exp and act as a percent of exp.
// E.g. exp=5.0, act=4.0 => 0.2, i.e., 20%
func ErrorPct(exp, act float64) float64 {
	if exp == 0.0 {
		if act != 0.0 {
			return 1.0
		}
		return 0.0
	}

	return math.Abs(exp-act) / exp
}

// IsApproximatelyWithThreshold asserts approximate equality within a given
// threshold; e.g. threshold = 0.01 asserts act is close to exp, within 1% of exp.
func IsApproximatelyWithThreshold(exp, act, threshold float64) bool {
	delta := math.Abs(exp) * threshold
	if delta < 0.00001 {
		delta = 0.00001
	}
	return math.Abs(exp-act) < delta
}

// Asserter provides assertion testing helpers.
type Asserter struct {
	ApproxThreshold float64
	// SecondsMargin is an absolute slack allowed on runtime-derived values,
	// covering the drift between predicting and querying running instances.
	SecondsMargin float64
	ShowDiff      bool
	LogPrefix     string
	T             TestingT
}

// NewAsserter instantiates a new Asserter (helper functions) that takes a test
// state manager (*testing.T) for reporting failures.
func NewAsserter(t TestingT) *Asserter {
	return &Asserter{
		ApproxThreshold: env.GetApproxThreshold(),
		ShowDiff:        env.GetShowDiff(),
		LogPrefix:       "",
		T:               t,
	}
}

// WithPrefix returns a copy of the asserter that prefixes every failure.
func (a *Asserter) WithPrefix(prefix string) *Asserter {
	c := *a
	c.LogPrefix = prefix
	return &c
}

// AssertEqualInt asserts that exp == act and errors if that condition fails.
func (a *Asserter) AssertEqualInt(exp, act int, msg string) {
	a.T.Helper()
	if exp != act {
		a.Errorf("%s: exp %d !== %d act (%+d error)", msg, exp, act, act-exp)
	}
}

// AssertEqualBool asserts that exp == act.
func (a *Asserter) AssertEqualBool(exp, act bool, msg string) {
	a.T.Helper()
	if exp != act {
		a.Errorf("%s: exp %t !== %t act", msg, exp, act)
	}
}

// AssertEqualString asserts that exp == act and errors if that condition fails.
func (a *Asserter) AssertEqualString(exp, act string, msg string) {
	a.T.Helper()
	if exp != act {
		a.Errorf("%s: exp \"%s\" !== \"%s\" act", msg, exp, act)
	}
}

// AssertEqualIntPtr asserts that exp and act are both nil or hold the same
// value.
func (a *Asserter) AssertEqualIntPtr(exp, act *int, msg string) {
	a.T.Helper()
	switch {
	case exp == nil && act == nil:
	case exp == nil:
		a.Errorf("%s: exp null !== %d act", msg, *act)
	case act == nil:
		a.Errorf("%s: exp %d !== null act", msg, *exp)
	default:
		a.AssertEqualInt(*exp, *act, msg)
	}
}

// AssertApproximatelyPtr asserts that exp and act are both nil or hold values
// within the threshold (plus SecondsMargin) of each other.
func (a *Asserter) AssertApproximatelyPtr(exp, act *float64, msg string) {
	a.T.Helper()
	switch {
	case exp == nil && act == nil:
	case exp == nil:
		a.Errorf("%s: exp null !== %f act", msg, *act)
	case act == nil:
		a.Errorf("%s: exp %f !== null act", msg, *exp)
	default:
		if !a.closeEnough(*exp, *act) {
			a.Errorf("%s: exp %f !~= %f act (%.2f%% error)", msg, *exp, *act, ErrorPct(*exp, *act)*100)
		}
	}
}

// AssertNilInt asserts that act is null.
func (a *Asserter) AssertNilInt(act *int, msg string) {
	a.T.Helper()
	if act != nil {
		a.Errorf("%s: exp null !== %d act", msg, *act)
	}
}

// AssertStatus asserts the response status code.
func (a *Asserter) AssertStatus(resp *api.Response, code int, msg string) {
	a.T.Helper()
	if resp == nil {
		a.Errorf("%s: exp status %d, got no response", msg, code)
		return
	}
	if resp.StatusCode != code {
		a.Errorf("%s: exp status %d !== %d act: %s %s: %s", msg, code, resp.StatusCode, resp.Method, resp.URL, resp.Body)
	}
}

// AssertFieldError asserts a 400 response whose body names field, and, if
// substr is not empty, has a message for it containing substr.
func (a *Asserter) AssertFieldError(resp *api.Response, field, substr string) {
	a.T.Helper()
	errs := a.validationErrors(resp)
	if errs == nil {
		return
	}
	if !errs.Has(field) {
		a.Errorf("exp a validation error for %q, got %v", field, errs)
		return
	}
	if substr != "" && !errs.Contains(field, substr) {
		a.Errorf("exp %q errors to mention %q, got %v", field, substr, errs[field])
	}
}

// AssertNonFieldError asserts a 400 response with a non-field error
// containing substr.
func (a *Asserter) AssertNonFieldError(resp *api.Response, substr string) {
	a.T.Helper()
	a.AssertFieldError(resp, api.NonFieldErrorsKey, substr)
}

func (a *Asserter) validationErrors(resp *api.Response) api.ValidationErrors {
	a.T.Helper()
	a.AssertStatus(resp, 400, "validation error")
	if resp == nil || resp.StatusCode != 400 {
		return nil
	}
	errs, err := resp.Errors()
	if err != nil {
		a.Errorf("decoding validation errors: %s", err)
		return nil
	}
	return errs
}

// AssertAccountOverview compares every count and runtime of an account
// overview with the prediction, treating nil as JSON null.
func (a *Asserter) AssertAccountOverview(exp oracle.AccountOverview, act api.AccountOverview) {
	a.T.Helper()
	a.AssertEqualIntPtr(exp.Images, act.Images, "images")
	a.AssertEqualIntPtr(exp.Instances, act.Instances, "instances")
	a.AssertEqualIntPtr(exp.RHELInstances, act.RHELInstances, "rhel_instances")
	a.AssertEqualIntPtr(exp.OpenShiftInstances, act.OpenShiftInstances, "openshift_instances")
	a.AssertApproximatelyPtr(exp.RHELRuntimeSeconds, act.RHELRuntimeSeconds, "rhel_runtime_seconds")
	a.AssertApproximatelyPtr(exp.OpenShiftRuntimeSeconds, act.OpenShiftRuntimeSeconds, "openshift_runtime_seconds")
	a.AssertApproximatelyPtr(exp.RHELMemorySeconds, act.RHELMemorySeconds, "rhel_memory_seconds")
	a.AssertApproximatelyPtr(exp.OpenShiftMemorySeconds, act.OpenShiftMemorySeconds, "openshift_memory_seconds")
	a.AssertApproximatelyPtr(exp.RHELVCPUSeconds, act.RHELVCPUSeconds, "rhel_vcpu_seconds")
	a.AssertApproximatelyPtr(exp.OpenShiftVCPUSeconds, act.OpenShiftVCPUSeconds, "openshift_vcpu_seconds")
	a.AssertEqualIntPtr(exp.RHELImagesChallenged, act.RHELImagesChallenged, "rhel_images_challenged")
	a.AssertEqualIntPtr(exp.OpenShiftImagesChallenged, act.OpenShiftImagesChallenged, "openshift_images_challenged")
}

// ImageRow is the comparable form of one image report entry.
type ImageRow struct {
	AMIID               string
	RHEL                bool
	RHELChallenged      bool
	OpenShift           bool
	OpenShiftChallenged bool
	InstancesSeen       int
	RuntimeSeconds      float64
	MemorySeconds       float64
	VCPUSeconds         float64
}

// ExpectedImageRows converts predicted images to rows.
func ExpectedImageRows(images []oracle.ImageUsage) []ImageRow {
	rows := make([]ImageRow, 0, len(images))
	for _, iu := range images {
		rows = append(rows, ImageRow{
			AMIID:               iu.AMIID,
			RHEL:                iu.RHEL,
			RHELChallenged:      iu.RHELChallenged,
			OpenShift:           iu.OpenShift,
			OpenShiftChallenged: iu.OpenShiftChallenged,
			InstancesSeen:       len(iu.InstanceIDs),
			RuntimeSeconds:      iu.RuntimeSeconds,
			MemorySeconds:       iu.MemorySeconds,
			VCPUSeconds:         iu.VCPUSeconds,
		})
	}
	return rows
}

// ActualImageRows converts report entries to rows.
func ActualImageRows(items []api.ImageReportItem) []ImageRow {
	rows := make([]ImageRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, ImageRow{
			AMIID:               it.AMIID(),
			RHEL:                it.RHEL,
			RHELChallenged:      it.RHELChallenged,
			OpenShift:           it.OpenShift,
			OpenShiftChallenged: it.OpenShiftChallenged,
			InstancesSeen:       it.InstancesSeen,
			RuntimeSeconds:      it.RuntimeSeconds,
			MemorySeconds:       it.MemorySeconds,
			VCPUSeconds:         it.VCPUSeconds,
		})
	}
	return rows
}

// AssertImages compares predicted and reported images as sets keyed by AMI
// id; order is ignored and runtimes are compared approximately.
func (a *Asserter) AssertImages(exp []oracle.ImageUsage, act []api.ImageReportItem) {
	a.T.Helper()
	expRows := ExpectedImageRows(exp)
	actRows := ActualImageRows(act)

	diff := cmp.Diff(expRows, actRows,
		cmpopts.SortSlices(func(x, y ImageRow) bool { return x.AMIID < y.AMIID }),
		cmpopts.EquateApprox(a.ApproxThreshold, a.SecondsMargin),
		cmpopts.EquateEmpty(),
	)
	if diff == "" {
		return
	}
	if a.ShowDiff {
		a.Errorf("images mismatch (-exp +act):\n%s", diff)
		return
	}
	a.Errorf("images mismatch: exp %v, act %v", amiIDs(expRows), amiIDs(actRows))
}

func amiIDs(rows []ImageRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AMIID)
	}
	sort.Strings(ids)
	return ids
}

// AssertSameElements asserts that exp and act hold the same elements in any
// order.
func AssertSameElements[S ~[]E, E comparable](a *Asserter, exp, act S, msg string) {
	a.T.Helper()
	count := map[E]int{}
	for _, e := range exp {
		count[e]++
	}
	for _, e := range act {
		count[e]--
	}
	for _, n := range count {
		if n != 0 {
			a.Errorf("%s: exp \"%v\" !== \"%v\" act (ignoring order)", msg, exp, act)
			return
		}
	}
}

// Errorf calls Errorf on asserter's T, appending the log prefix if it exists.
func (a *Asserter) Errorf(format string, args ...any) {
	a.T.Helper()
	if a.LogPrefix == "" {
		a.T.Errorf(format, args...)
	} else {
		msg := fmt.Sprintf(format, args...)
		a.T.Errorf("%s: %s", a.LogPrefix, msg)
	}
}

// IsApproximately reports whether exp and act agree within the asserter's
// relative threshold.
func (a *Asserter) IsApproximately(exp, act float64) bool {
	return IsApproximatelyWithThreshold(exp, act, a.ApproxThreshold)
}

func (a *Asserter) closeEnough(exp, act float64) bool {
	if math.Abs(exp-act) <= a.SecondsMargin {
		return true
	}
	return a.IsApproximately(exp, act)
}
