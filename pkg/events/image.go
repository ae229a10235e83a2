package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultInstanceType = "t2.micro"
	defaultVCPU         = 1
	defaultMemoryGB     = 1.0
)

// Tags is the set of product tags detected on an image.
type Tags struct {
	RHEL      bool
	OpenShift bool
	Windows   bool
}

// ParseTags reads a comma separated tag string such as "rhel,openshift".
// Unknown names are ignored; "" yields no tags.
func ParseTags(s string) Tags {
	var tags Tags
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "rhel":
			tags.RHEL = true
		case "openshift":
			tags.OpenShift = true
		case "windows":
			tags.Windows = true
		}
	}
	return tags
}

func (t Tags) String() string {
	var parts []string
	if t.RHEL {
		parts = append(parts, "rhel")
	}
	if t.OpenShift {
		parts = append(parts, "openshift")
	}
	if t.Windows {
		parts = append(parts, "windows")
	}
	return strings.Join(parts, ",")
}

// Platform is the image platform the service records.
func (t Tags) Platform() string {
	if t.Windows {
		return "windows"
	}
	return "none"
}

// ImageSpec describes the image an instance runs.
type ImageSpec struct {
	// Tag is a comma separated tag string, see ParseTags.
	Tag string `json:"tag"`
	// AMIID identifies the image; instances sharing it share the image.
	AMIID        string  `json:"ec2_ami_id,omitempty"`
	InstanceType string  `json:"instance_type,omitempty"`
	VCPU         int     `json:"vcpu,omitempty"`
	MemoryGB     float64 `json:"memory,omitempty"`
}

// Tags parses Tag.
func (s ImageSpec) Tags() Tags {
	return ParseTags(s.Tag)
}

// WithDefaults fills in a generated AMI id and the default instance shape.
func (s ImageSpec) WithDefaults() ImageSpec {
	if s.AMIID == "" {
		s.AMIID = NewAMIID()
	}
	if s.InstanceType == "" {
		s.InstanceType = defaultInstanceType
	}
	if s.VCPU <= 0 {
		s.VCPU = defaultVCPU
	}
	if s.MemoryGB <= 0 {
		s.MemoryGB = defaultMemoryGB
	}
	return s
}

// Timeline is one synthetic instance: its image and power events.
type Timeline struct {
	InstanceID string    `json:"ec2_instance_id"`
	Image      ImageSpec `json:"image"`
	Events     []Event   `json:"events"`
}

// NewTimeline synthesizes an instance running spec with events at ages
// relative to now.
func NewTimeline(now time.Time, spec ImageSpec, ages ...Age) (Timeline, error) {
	evts, err := Synthesize(now, ages)
	if err != nil {
		return Timeline{}, err
	}
	return Timeline{
		InstanceID: NewInstanceID(),
		Image:      spec.WithDefaults(),
		Events:     evts,
	}, nil
}

// First is the time of the earliest event.
func (tl Timeline) First() time.Time {
	if len(tl.Events) == 0 {
		return time.Time{}
	}
	return tl.Events[0].Time
}

// Running reports whether the last event is a power_on.
func (tl Timeline) Running() bool {
	return len(tl.Events) > 0 && tl.Events[len(tl.Events)-1].IsStart()
}

// NewAMIID returns a random AMI style id.
func NewAMIID() string {
	return "ami-" + shortHex()
}

// NewInstanceID returns a random EC2 instance style id.
func NewInstanceID() string {
	return "i-" + shortHex()
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:17]
}
