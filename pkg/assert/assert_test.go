package assert

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/oracle"
)

type recorder struct {
	failures []string
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func newAsserter() (*Asserter, *recorder) {
	r := &recorder{}
	return &Asserter{ApproxThreshold: 0.0001, T: r}, r
}

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }

func TestErrorPct(t *testing.T) {
	tests := []struct {
		exp, act, pct float64
	}{
		{5.0, 4.0, 0.2},
		{0.0, 1.0, 1.0},
		{0.0, 0.0, 0.0},
		{2.0, 2.0, 0.0},
	}
	for _, tc := range tests {
		if got := ErrorPct(tc.exp, tc.act); got != tc.pct {
			t.Errorf("ErrorPct(%f, %f): exp %f, act %f", tc.exp, tc.act, tc.pct, got)
		}
	}
}

func TestIsApproximatelyWithThreshold(t *testing.T) {
	if !IsApproximatelyWithThreshold(100.0, 100.5, 0.01) {
		t.Errorf("100.5 should be within 1%% of 100")
	}
	if IsApproximatelyWithThreshold(100.0, 102.0, 0.01) {
		t.Errorf("102 should not be within 1%% of 100")
	}
	if !IsApproximatelyWithThreshold(0.0, 0.0, 0.0) {
		t.Errorf("zero should equal zero")
	}
}

func TestAssertEqualIntPtr(t *testing.T) {
	tests := []struct {
		name     string
		exp, act *int
		failures int
	}{
		{name: "both null", failures: 0},
		{name: "equal", exp: intp(3), act: intp(3), failures: 0},
		{name: "different", exp: intp(3), act: intp(4), failures: 1},
		{name: "expected null", act: intp(0), failures: 1},
		{name: "actual null", exp: intp(0), failures: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, r := newAsserter()
			a.AssertEqualIntPtr(tc.exp, tc.act, "images")
			if len(r.failures) != tc.failures {
				t.Errorf("exp %d failures, got %v", tc.failures, r.failures)
			}
		})
	}
}

func TestAssertApproximatelyPtrMargin(t *testing.T) {
	a, r := newAsserter()
	a.AssertApproximatelyPtr(floatp(3600), floatp(3602), "runtime")
	if len(r.failures) != 1 {
		t.Fatalf("exp a failure without margin, got %v", r.failures)
	}

	a, r = newAsserter()
	a.SecondsMargin = 5
	a.AssertApproximatelyPtr(floatp(3600), floatp(3602), "runtime")
	if len(r.failures) != 0 {
		t.Errorf("exp no failure within margin, got %v", r.failures)
	}
}

func TestAssertAccountOverview(t *testing.T) {
	exp := oracle.AccountOverview{
		Images:                    intp(1),
		Instances:                 intp(2),
		RHELInstances:             intp(2),
		OpenShiftInstances:        intp(0),
		RHELRuntimeSeconds:        floatp(7200),
		OpenShiftRuntimeSeconds:   floatp(0),
		RHELMemorySeconds:         floatp(7200),
		OpenShiftMemorySeconds:    floatp(0),
		RHELVCPUSeconds:           floatp(7200),
		OpenShiftVCPUSeconds:      floatp(0),
		RHELImagesChallenged:      intp(0),
		OpenShiftImagesChallenged: intp(0),
	}
	act := api.AccountOverview{
		ID:                        1,
		Images:                    intp(1),
		Instances:                 intp(2),
		RHELInstances:             intp(2),
		OpenShiftInstances:        intp(0),
		RHELRuntimeSeconds:        floatp(7200),
		OpenShiftRuntimeSeconds:   floatp(0),
		RHELMemorySeconds:         floatp(7200),
		OpenShiftMemorySeconds:    floatp(0),
		RHELVCPUSeconds:           floatp(7200),
		OpenShiftVCPUSeconds:      floatp(0),
		RHELImagesChallenged:      intp(0),
		OpenShiftImagesChallenged: intp(0),
	}

	a, r := newAsserter()
	a.AssertAccountOverview(exp, act)
	if len(r.failures) != 0 {
		t.Fatalf("exp match, got %v", r.failures)
	}

	act.RHELInstances = intp(1)
	act.OpenShiftRuntimeSeconds = nil
	a, r = newAsserter()
	a.AssertAccountOverview(exp, act)
	if len(r.failures) != 2 {
		t.Errorf("exp 2 failures, got %v", r.failures)
	}

	a, r = newAsserter()
	a.AssertAccountOverview(oracle.AccountOverview{}, api.AccountOverview{})
	if len(r.failures) != 0 {
		t.Errorf("null overviews should match, got %v", r.failures)
	}
}

func TestAssertImagesIgnoresOrder(t *testing.T) {
	exp := []oracle.ImageUsage{
		{AMIID: "ami-b", RHEL: true, InstanceIDs: []string{"i-1", "i-2"}, RuntimeSeconds: 100, MemorySeconds: 100, VCPUSeconds: 100},
		{AMIID: "ami-a", OpenShift: true, OpenShiftChallenged: true, InstanceIDs: []string{"i-3"}, RuntimeSeconds: 50, MemorySeconds: 25, VCPUSeconds: 100},
	}
	act := []api.ImageReportItem{
		{EC2AMIID: "ami-a", OpenShift: true, OpenShiftChallenged: true, InstancesSeen: 1, RuntimeSeconds: 50, MemorySeconds: 25, VCPUSeconds: 100},
		{CloudImageID: "ami-b", RHEL: true, InstancesSeen: 2, RuntimeSeconds: 100, MemorySeconds: 100, VCPUSeconds: 100},
	}

	a, r := newAsserter()
	a.AssertImages(exp, act)
	if len(r.failures) != 0 {
		t.Fatalf("exp match, got %v", r.failures)
	}

	act[1].RHEL = false
	a, r = newAsserter()
	a.ShowDiff = true
	a.AssertImages(exp, act)
	if len(r.failures) != 1 {
		t.Errorf("exp 1 failure, got %v", r.failures)
	}

	a, r = newAsserter()
	a.AssertImages(nil, []api.ImageReportItem{})
	if len(r.failures) != 0 {
		t.Errorf("empty sets should match, got %v", r.failures)
	}
}

func TestAssertFieldError(t *testing.T) {
	resp := &api.Response{
		Method:     http.MethodPost,
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"account_arn": ["Invalid ARN."], "non_field_errors": "Permission denied"}`),
	}

	a, r := newAsserter()
	a.AssertFieldError(resp, "account_arn", "Invalid ARN")
	a.AssertNonFieldError(resp, "Permission")
	if len(r.failures) != 0 {
		t.Fatalf("exp match, got %v", r.failures)
	}

	a, r = newAsserter()
	a.AssertFieldError(resp, "name", "")
	if len(r.failures) != 1 {
		t.Errorf("exp missing field failure, got %v", r.failures)
	}

	a, r = newAsserter()
	a.AssertFieldError(&api.Response{StatusCode: http.StatusCreated}, "name", "")
	if len(r.failures) != 1 {
		t.Errorf("exp status failure, got %v", r.failures)
	}
}

func TestAssertSameElements(t *testing.T) {
	a, r := newAsserter()
	AssertSameElements(a, []string{"a", "b", "b"}, []string{"b", "a", "b"}, "ids")
	if len(r.failures) != 0 {
		t.Fatalf("exp match, got %v", r.failures)
	}
	AssertSameElements(a, []string{"a", "b"}, []string{"a", "a"}, "ids")
	if len(r.failures) != 1 {
		t.Errorf("exp 1 failure, got %v", r.failures)
	}
}

func TestWithPrefix(t *testing.T) {
	a, r := newAsserter()
	a.WithPrefix("account 7").AssertEqualInt(1, 2, "images")
	if len(r.failures) != 1 || r.failures[0][:9] != "account 7" {
		t.Errorf("exp prefixed failure, got %v", r.failures)
	}
}
