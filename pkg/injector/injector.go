// Package injector writes synthetic accounts and instance histories straight
// into the service through its internal endpoints, bypassing the cloud
// provider.
package injector

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/log"
	"github.com/cloudigrade/integrade/pkg/oracle"
)

// Injector posts synthetic data with superuser credentials.
type Injector struct {
	api    *api.API
	auth   api.Auth
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	created map[int]time.Time // earliest creation time sent per account
}

// New builds an injector over client. auth may be nil to use the client's
// default credentials.
func New(client *api.API, auth api.Auth) *Injector {
	return &Injector{
		api:     client,
		auth:    auth,
		now:     time.Now,
		logger:  log.With("injector"),
		created: map[int]time.Time{},
	}
}

type accountPayload struct {
	UserID       int              `json:"user_id"`
	Name         string           `json:"name"`
	AWSAccountID string           `json:"aws_account_id"`
	AccountARN   string           `json:"account_arn"`
	ResourceType api.ResourceType `json:"resourcetype"`
	CreatedAt    time.Time        `json:"created_at"`
}

type imagePayload struct {
	EC2AMIID  string  `json:"ec2_ami_id"`
	RHEL      bool    `json:"rhel_detected"`
	OpenShift bool    `json:"openshift_detected"`
	Platform  string  `json:"platform"`
	VCPU      int     `json:"vcpu"`
	MemoryGB  float64 `json:"memory"`
}

type instancePayload struct {
	AccountID     int            `json:"account_id"`
	EC2InstanceID string         `json:"ec2_instance_id"`
	InstanceType  string         `json:"instance_type"`
	Image         imagePayload   `json:"image"`
	Events        []events.Event `json:"events"`
	// AccountCreatedAt moves the account creation back to the earliest event
	// injected for it so no history is reported as preceding the account.
	AccountCreatedAt time.Time `json:"account_created_at"`
}

// Instance identifies the records created for one timeline.
type Instance struct {
	InstanceID int `json:"instance_id"`
	ImageID    int `json:"image_id"`
}

// InjectAWSCloudAccount creates an AWS account named name owned by userID,
// with a random account number.
func (i *Injector) InjectAWSCloudAccount(ctx context.Context, userID int, name string) (*api.CloudAccount, error) {
	number := RandomAccountNumber()
	payload := accountPayload{
		UserID:       userID,
		Name:         name,
		AWSAccountID: number,
		AccountARN:   fmt.Sprintf("arn:aws:iam::%s:role/integrade-%s", number, uuid.NewString()[:8]),
		ResourceType: api.ResourceTypeAWS,
		CreatedAt:    i.now().UTC(),
	}

	acct := &api.CloudAccount{}
	if err := i.post(ctx, i.api.URLs().InjectAccount, payload, acct); err != nil {
		return nil, fmt.Errorf("injecting account %q: %w", name, err)
	}
	if !acct.CreatedAt.IsZero() {
		i.accountStart(acct.ID, acct.CreatedAt)
	}
	i.logger.Debug().Int("account", acct.ID).Int("user", userID).Str("name", name).Msg("injected account")
	return acct, nil
}

// InjectInstanceData records tl as an instance of account accountID.
func (i *Injector) InjectInstanceData(ctx context.Context, accountID int, tl events.Timeline) (*Instance, error) {
	if len(tl.Events) == 0 {
		return nil, events.ErrEmptyTimeline
	}
	image := tl.Image.WithDefaults()
	tags := image.Tags()
	payload := instancePayload{
		AccountID:     accountID,
		EC2InstanceID: tl.InstanceID,
		InstanceType:  image.InstanceType,
		Image: imagePayload{
			EC2AMIID:  image.AMIID,
			RHEL:      tags.RHEL,
			OpenShift: tags.OpenShift,
			Platform:  tags.Platform(),
			VCPU:      image.VCPU,
			MemoryGB:  image.MemoryGB,
		},
		Events:           tl.Events,
		AccountCreatedAt: i.accountStart(accountID, tl.First()),
	}

	out := &Instance{}
	if err := i.post(ctx, i.api.URLs().InjectInstance, payload, out); err != nil {
		return nil, fmt.Errorf("injecting instance %s: %w", tl.InstanceID, err)
	}
	i.logger.Debug().
		Int("account", accountID).
		Str("instance", tl.InstanceID).
		Str("ami", image.AMIID).
		Int("events", len(tl.Events)).
		Msg("injected instance")
	return out, nil
}

// Inject records tl and mirrors it into in, so the oracle sees exactly what
// the service was given.
func (i *Injector) Inject(ctx context.Context, in *oracle.Input, tl events.Timeline) (*Instance, error) {
	tl.Image = tl.Image.WithDefaults()
	out, err := i.InjectInstanceData(ctx, in.Account.ID, tl)
	if err != nil {
		return nil, err
	}
	in.Timelines = append(in.Timelines, tl)
	if first := tl.First(); in.Account.CreatedAt.IsZero() || first.Before(in.Account.CreatedAt) {
		in.Account.CreatedAt = first
	}
	return out, nil
}

// accountStart returns the creation time to send for accountID given a
// history starting at first. It never moves later than a time already sent.
func (i *Injector) accountStart(accountID int, first time.Time) time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	if at, ok := i.created[accountID]; ok && !at.After(first) {
		return at
	}
	i.created[accountID] = first
	return first
}

func (i *Injector) post(ctx context.Context, relativeURL string, payload, out interface{}) error {
	resp, err := i.api.POST(ctx, relativeURL, payload, i.auth)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &api.StatusError{Response: resp}
	}
	return resp.JSON(out)
}

// RandomAccountNumber returns a random 12 digit AWS account number.
func RandomAccountNumber() string {
	id := uuid.New()
	return fmt.Sprintf("%012d", binary.BigEndian.Uint64(id[:8])%1_000_000_000_000)
}
