// Package scenario reads synthetic usage scenarios from YAML files.
//
//	name: reused image
//	window:
//	  offset_days: 0
//	instances:
//	  - tag: rhel
//	    ami: image1
//	    days: [10]
//	    count: 3
//	challenges:
//	  - ami: image1
//	    tag: rhel
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/oracle"
	"github.com/cloudigrade/integrade/pkg/utils"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Window selects the reporting window. Month wins over explicit bounds, and
// explicit bounds win over the offset.
type Window struct {
	// OffsetDays shifts the default 30 day window into the past.
	OffsetDays int `json:"offset_days,omitempty"`
	// Month is a date dropdown label such as "2018 July".
	Month string     `json:"month,omitempty"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Instance describes Count instances sharing one image and one history.
type Instance struct {
	Tag          string      `json:"tag,omitempty"`
	AMI          string      `json:"ami,omitempty"`
	InstanceType string      `json:"instance_type,omitempty"`
	VCPU         int         `json:"vcpu,omitempty"`
	Memory       float64     `json:"memory,omitempty"`
	Days         []float64   `json:"days,omitempty"`
	Times        []time.Time `json:"times,omitempty"`
	Count        int         `json:"count,omitempty"`
}

// Challenge disputes one tag of an image.
type Challenge struct {
	AMI string `json:"ami"`
	Tag string `json:"tag"`
}

// Scenario is one account's synthetic history.
type Scenario struct {
	Name string `json:"name"`
	// Now pins the evaluation time; zero means the time of the run.
	Now         *time.Time  `json:"now,omitempty"`
	AccountName string      `json:"account_name,omitempty"`
	Window      Window      `json:"window,omitempty"`
	Instances   []Instance  `json:"instances"`
	Challenges  []Challenge `json:"challenges,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML (or JSON) scenario.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.UnmarshalStrict(data, s); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks every instance has exactly one kind of history.
func (s *Scenario) Validate() error {
	if len(s.Instances) == 0 {
		return fmt.Errorf("%w: no instances", ErrInvalidScenario)
	}
	for i, inst := range s.Instances {
		if (len(inst.Days) == 0) == (len(inst.Times) == 0) {
			return fmt.Errorf("%w: instance %d needs either days or times", ErrInvalidScenario, i)
		}
		if inst.Count < 0 {
			return fmt.Errorf("%w: instance %d has a negative count", ErrInvalidScenario, i)
		}
	}
	for i, c := range s.Challenges {
		if c.Tag != "rhel" && c.Tag != "openshift" {
			return fmt.Errorf("%w: challenge %d tag %q is neither rhel nor openshift", ErrInvalidScenario, i, c.Tag)
		}
	}
	return nil
}

// EvaluationTime is the pinned Now or fallback.
func (s *Scenario) EvaluationTime(fallback time.Time) time.Time {
	if s.Now != nil {
		return s.Now.UTC()
	}
	return fallback.UTC()
}

// ReportWindow resolves the window relative to now.
func (s *Scenario) ReportWindow(now time.Time) (api.Window, error) {
	w := s.Window
	switch {
	case w.Month != "":
		t, err := time.Parse("2006 January", w.Month)
		if err != nil {
			return api.Window{}, fmt.Errorf("%w: month %q: %s", ErrInvalidScenario, w.Month, err)
		}
		return utils.MonthWindow(t.Year(), t.Month()), nil
	case w.Start != nil || w.End != nil:
		if w.Start == nil || w.End == nil {
			return api.Window{}, fmt.Errorf("%w: window needs both start and end", ErrInvalidScenario)
		}
		window := api.NewWindow(*w.Start, *w.End)
		if err := utils.ValidateWindow(window); err != nil {
			return api.Window{}, err
		}
		return window, nil
	default:
		return utils.GetTimeRange(now, w.OffsetDays), nil
	}
}

// Timelines synthesizes every instance at now. Instances sharing an image
// without naming it get one generated AMI id.
func (s *Scenario) Timelines(now time.Time) ([]events.Timeline, error) {
	var timelines []events.Timeline
	for i, inst := range s.Instances {
		ages := events.Days(inst.Days...)
		if len(inst.Times) > 0 {
			ages = events.Times(inst.Times...)
		}
		spec := events.ImageSpec{
			Tag:          inst.Tag,
			AMIID:        inst.AMI,
			InstanceType: inst.InstanceType,
			VCPU:         inst.VCPU,
			MemoryGB:     inst.Memory,
		}.WithDefaults()

		count := inst.Count
		if count == 0 {
			count = 1
		}
		for n := 0; n < count; n++ {
			tl, err := events.NewTimeline(now, spec, ages...)
			if err != nil {
				return nil, fmt.Errorf("instance %d: %w", i, err)
			}
			timelines = append(timelines, tl)
		}
	}
	return timelines, nil
}

// Span is the smallest window covering every instance's activity, open
// intervals closing at now. It is nil for a scenario without events.
func Span(timelines []events.Timeline, now time.Time) (*api.Window, error) {
	var span *api.Window
	for _, tl := range timelines {
		intervals, err := events.Intervals(tl.Events, now)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", tl.InstanceID, err)
		}
		for _, iv := range intervals {
			iv := iv
			if span == nil {
				span = &api.Window{Start: iv.Start, End: iv.End}
				continue
			}
			span = api.ExpandTimeRange(span, &iv)
		}
	}
	return span, nil
}

// Input builds the oracle input for timelines, resolving challenges that name
// AMIs.
func (s *Scenario) Input(accountID int, timelines []events.Timeline) oracle.Input {
	in := oracle.Input{Account: oracle.Account{ID: accountID}, Timelines: timelines}
	for _, tl := range timelines {
		if first := tl.First(); in.Account.CreatedAt.IsZero() || first.Before(in.Account.CreatedAt) {
			in.Account.CreatedAt = first
		}
	}
	for _, c := range s.Challenges {
		in.Challenge(c.AMI, c.Tag)
	}
	return in
}

// Evaluate synthesizes the scenario at now and predicts its report.
func (s *Scenario) Evaluate(now time.Time) (*oracle.Report, error) {
	window, err := s.ReportWindow(now)
	if err != nil {
		return nil, err
	}
	timelines, err := s.Timelines(now)
	if err != nil {
		return nil, err
	}
	return oracle.Evaluate(s.Input(0, timelines), window, now)
}
