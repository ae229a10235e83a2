package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloudigrade/integrade/internal/render"
	"github.com/cloudigrade/integrade/internal/scenario"
	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/assert"
	"github.com/cloudigrade/integrade/pkg/env"
	"github.com/cloudigrade/integrade/pkg/injector"
	"github.com/cloudigrade/integrade/pkg/log"
	"github.com/cloudigrade/integrade/pkg/oracle"
	"github.com/cloudigrade/integrade/pkg/wait"
)

// ErrMismatch is returned when the service disagrees with the prediction.
var ErrMismatch = errors.New("reports do not match the prediction")

// collector gathers assertion failures instead of failing a test.
type collector struct {
	failures []string
}

func (c *collector) Helper() {}

func (c *collector) Errorf(format string, args ...any) {
	c.failures = append(c.failures, fmt.Sprintf(format, args...))
}

// observation is one poll of the live reports.
type observation struct {
	expected *oracle.Report
	overview *api.AccountOverview
	images   *api.ImagesReport
	failures []string
}

func newCheckCmd() *cobra.Command {
	var (
		timeout time.Duration
		margin  float64
	)

	cmd := &cobra.Command{
		Use:   "check <scenario.yaml>",
		Short: "Inject a scenario into the service and compare its reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			if s.Now != nil {
				return fmt.Errorf("%w: check runs against the live clock and cannot pin now", scenario.ErrInvalidScenario)
			}
			cfg, err := env.Get()
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg, s, timeout, margin)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the reports to converge")
	cmd.Flags().Float64Var(&margin, "seconds-margin", 120, "absolute slack in seconds on runtime values")
	return cmd
}

func runCheck(ctx context.Context, w io.Writer, cfg env.Config, s *scenario.Scenario, timeout time.Duration, margin float64) error {
	client := api.NewSuperuserAPI(cfg)
	inj := injector.New(client, nil)

	email := fmt.Sprintf("integrade-%s@example.com", uuid.NewString())
	user, err := client.CreateUser(ctx, email, uuid.NewString())
	if err != nil {
		return err
	}
	userAuth, err := client.Token(ctx, *user)
	if err != nil {
		return err
	}

	name := s.AccountName
	if name == "" {
		name = s.Name
	}
	account, err := inj.InjectAWSCloudAccount(ctx, user.ID, name)
	if err != nil {
		return err
	}
	log.Infof("registered account %d for %s", account.ID, email)

	now := time.Now().UTC()
	timelines, err := s.Timelines(now)
	if err != nil {
		return err
	}
	in := oracle.Input{Account: oracle.Account{ID: account.ID, CreatedAt: account.CreatedAt}}
	imageIDs := map[string]int{}
	for _, tl := range timelines {
		inst, err := inj.Inject(ctx, &in, tl)
		if err != nil {
			return err
		}
		imageIDs[tl.Image.AMIID] = inst.ImageID
	}
	for _, c := range s.Challenges {
		id, ok := imageIDs[c.AMI]
		if !ok {
			return fmt.Errorf("%w: challenge names unknown ami %q", scenario.ErrInvalidScenario, c.AMI)
		}
		if _, err := client.ChallengeImage(ctx, id, c.Tag, true, userAuth); err != nil {
			return err
		}
		in.Challenge(c.AMI, c.Tag)
	}

	window, err := s.ReportWindow(now)
	if err != nil {
		return err
	}
	req := api.ForWindow(window, account.ID)

	sp := spinner.New(spinner.CharSets[9], 200*time.Millisecond)
	sp.Suffix = fmt.Sprintf(" Waiting for account %d reports ...", account.ID)
	sp.Start()
	obs, err := wait.Value(ctx, wait.DefaultConfig(timeout), "matching reports",
		func(ctx context.Context) (observation, error) {
			return observe(ctx, client, req, in, window, userAuth, margin)
		},
		func(o observation) bool { return len(o.failures) == 0 },
	)
	sp.Stop()
	if err != nil && !errors.Is(err, wait.ErrTimeout) {
		return err
	}
	if obs.expected == nil {
		return err
	}

	// The table uses the relative threshold only; the verdict comes from the asserter,
	// which allows the margin.
	render.Compare(w, "Account summary", render.CompareOverview(obs.expected.Overview, *obs.overview, cfg.ApproxThreshold))
	render.Images(w, obs.expected)
	for _, f := range obs.failures {
		fmt.Fprintln(w, f)
	}
	if len(obs.failures) > 0 {
		return fmt.Errorf("%w: %d problems", ErrMismatch, len(obs.failures))
	}
	fmt.Fprintln(w, "reports match")
	return nil
}

// observe fetches both reports and predicts them at the same moment.
func observe(ctx context.Context, client *api.API, req api.ReportRequest, in oracle.Input, window api.Window, auth api.Auth, margin float64) (observation, error) {
	overview, err := client.GetAccountOverview(ctx, req, auth)
	if err != nil {
		return observation{}, err
	}
	images, err := client.GetImagesReport(ctx, req, auth)
	if err != nil {
		return observation{}, err
	}
	expected, err := oracle.Evaluate(in, window, time.Now().UTC())
	if err != nil {
		return observation{}, err
	}

	c := &collector{}
	a := assert.NewAsserter(c)
	a.SecondsMargin = margin
	a.AssertAccountOverview(expected.Overview, *overview)
	a.AssertImages(expected.Images(), images.Images)

	return observation{
		expected: expected,
		overview: overview,
		images:   images,
		failures: c.failures,
	}, nil
}
