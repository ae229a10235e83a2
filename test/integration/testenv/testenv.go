// Package testenv wires the integration tests to a live deployment. Every
// helper skips the calling test when no deployment is configured or reachable.
package testenv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/assert"
	"github.com/cloudigrade/integrade/pkg/awsutil"
	"github.com/cloudigrade/integrade/pkg/env"
	"github.com/cloudigrade/integrade/pkg/events"
	"github.com/cloudigrade/integrade/pkg/injector"
	"github.com/cloudigrade/integrade/pkg/log"
	"github.com/cloudigrade/integrade/pkg/oracle"
)

const testTimeout = 5 * time.Minute

// setup is resolved by the first test to ask for it. Later and parallel
// callers only read it.
var setup struct {
	once sync.Once
	cfg  env.Config
	err  error
}

func resolve() (env.Config, error) {
	setup.once.Do(func() {
		setup.cfg, setup.err = env.Get()
		if setup.err == nil {
			log.InitLogging(setup.cfg.LogLevel)
		}
	})
	return setup.cfg, setup.err
}

// Config returns the harness configuration or skips t.
func Config(t *testing.T) env.Config {
	t.Helper()
	cfg, err := resolve()
	if err != nil {
		t.Skipf("no Cloud Meter deployment configured: %v", err)
	}
	return cfg
}

// Context is bounded by the test's lifetime.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// Superuser returns a client authenticated as the configured superuser,
// skipping t when the service does not answer.
func Superuser(t *testing.T) *api.API {
	t.Helper()
	cfg := Config(t)
	client := api.NewSuperuserAPI(cfg)
	if _, err := client.ListUsers(Context(t), nil); err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) {
			t.Fatalf("superuser token rejected: %v", err)
		}
		t.Skipf("Cloud Meter at %s is unavailable: %v", cfg.URL(), err)
	}
	return client
}

// User is a freshly created account holder and its credentials.
type User struct {
	api.User
	Auth api.TokenAuth
}

// NewUser creates a user with a random email and password and logs it in.
func NewUser(t *testing.T, client *api.API) User {
	t.Helper()
	ctx := Context(t)
	email := fmt.Sprintf("%s@example.com", uuid.NewString())
	user, err := client.CreateUser(ctx, email, uuid.NewString())
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	auth, err := client.Token(ctx, *user)
	if err != nil {
		t.Fatalf("logging in %s: %v", email, err)
	}
	return User{User: *user, Auth: auth}
}

// Fixture is a user owning one injected cloud account, and the oracle input
// mirroring everything injected into it.
type Fixture struct {
	T        *testing.T
	Client   *api.API
	Injector *injector.Injector
	User     User
	Account  *api.CloudAccount
	Input    oracle.Input
	// Images maps AMI ids to the service's image ids.
	Images map[string]int
}

// NewFixture creates a user and an account called name.
func NewFixture(t *testing.T, name string) *Fixture {
	t.Helper()
	client := Superuser(t)
	user := NewUser(t, client)
	inj := injector.New(client, nil)
	acct, err := inj.InjectAWSCloudAccount(Context(t), user.ID, name)
	if err != nil {
		t.Fatalf("injecting account: %v", err)
	}
	return &Fixture{
		T:        t,
		Client:   client,
		Injector: inj,
		User:     user,
		Account:  acct,
		Input:    oracle.Input{Account: oracle.Account{ID: acct.ID, CreatedAt: acct.CreatedAt}},
		Images:   map[string]int{},
	}
}

// Run injects one instance of spec with the activity ages, synthesized at
// now.
func (f *Fixture) Run(now time.Time, spec events.ImageSpec, ages ...events.Age) events.Timeline {
	f.T.Helper()
	tl, err := events.NewTimeline(now, spec, ages...)
	if err != nil {
		f.T.Fatalf("synthesizing timeline: %v", err)
	}
	inst, err := f.Injector.Inject(Context(f.T), &f.Input, tl)
	if err != nil {
		f.T.Fatalf("injecting instance: %v", err)
	}
	f.Images[tl.Image.AMIID] = inst.ImageID
	return tl
}

// Challenge flags tag on the image with amiID as the account owner.
func (f *Fixture) Challenge(amiID, tag string) {
	f.T.Helper()
	id, ok := f.Images[amiID]
	if !ok {
		f.T.Fatalf("no injected image %s", amiID)
	}
	if _, err := f.Client.ChallengeImage(Context(f.T), id, tag, true, f.User.Auth); err != nil {
		f.T.Fatalf("challenging %s on %s: %v", tag, amiID, err)
	}
	f.Input.Challenge(amiID, tag)
}

// Expect evaluates the oracle over everything injected so far.
func (f *Fixture) Expect(window api.Window, now time.Time) *oracle.Report {
	f.T.Helper()
	r, err := oracle.Evaluate(f.Input, window, now)
	if err != nil {
		f.T.Fatalf("evaluating oracle: %v", err)
	}
	return r
}

// Asserter allows a minute of drift on runtimes of running instances.
func Asserter(t *testing.T) *assert.Asserter {
	a := assert.NewAsserter(t)
	a.SecondsMargin = 60
	return a
}

// AWSSession opens a session for the n-th configured profile, skipping t when
// fewer profiles are configured.
func AWSSession(t *testing.T, n int) *awsutil.Session {
	t.Helper()
	cfg := Config(t)
	if !cfg.ProfilesPresent(n + 1) {
		t.Skipf("needs at least %d aws profiles", n+1)
	}
	s, err := awsutil.NewSession(Context(t), cfg.AWSProfiles[n], "")
	if err != nil {
		t.Fatalf("opening aws session: %v", err)
	}
	if err := s.VerifyAccount(Context(t)); err != nil {
		t.Fatalf("verifying aws profile: %v", err)
	}
	return s
}

// Cleanup returns a queue that runs when t finishes.
func Cleanup(t *testing.T) *awsutil.Cleanup {
	t.Helper()
	c := &awsutil.Cleanup{}
	t.Cleanup(func() {
		if err := c.Run(context.Background()); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	})
	return c
}
