// Package awsutil checks and undoes the side effects account registration
// has in a customer AWS account: the audit trail the service creates and the
// bucket it logs to.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudigrade/integrade/pkg/env"
	"github.com/cloudigrade/integrade/pkg/log"
)

const (
	DefaultRegion = "us-east-1"
	bucketPrefix  = "integrade-"
)

var ErrAccountMismatch = errors.New("aws profile belongs to a different account")

// TrailAPI is the part of the CloudTrail client in use.
type TrailAPI interface {
	DescribeTrails(ctx context.Context, in *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error)
	CreateTrail(ctx context.Context, in *cloudtrail.CreateTrailInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.CreateTrailOutput, error)
	UpdateTrail(ctx context.Context, in *cloudtrail.UpdateTrailInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.UpdateTrailOutput, error)
	DeleteTrail(ctx context.Context, in *cloudtrail.DeleteTrailInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DeleteTrailOutput, error)
}

// BucketAPI is the part of the S3 client in use.
type BucketAPI interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketPolicy(ctx context.Context, in *s3.PutBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// IdentityAPI is the part of the STS client in use.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Session holds clients for one configured AWS profile.
type Session struct {
	Profile  env.AWSProfile
	Region   string
	Trails   TrailAPI
	Buckets  BucketAPI
	Identity IdentityAPI
	logger   zerolog.Logger
}

// NewSession loads the shared config profile named by profile.
func NewSession(ctx context.Context, profile env.AWSProfile, region string) (*Session, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithSharedConfigProfile(profile.Name),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws profile %s: %w", profile.Name, err)
	}
	return NewSessionFromClients(profile, region,
		cloudtrail.NewFromConfig(cfg),
		s3.NewFromConfig(cfg),
		sts.NewFromConfig(cfg),
	), nil
}

// NewSessionFromClients assembles a session from existing clients.
func NewSessionFromClients(profile env.AWSProfile, region string, trails TrailAPI, buckets BucketAPI, identity IdentityAPI) *Session {
	return &Session{
		Profile:  profile,
		Region:   region,
		Trails:   trails,
		Buckets:  buckets,
		Identity: identity,
		logger:   log.With("aws").With().Str("profile", profile.Name).Logger(),
	}
}

// AccountNumber asks STS which account the profile's credentials belong to.
func (s *Session) AccountNumber(ctx context.Context) (string, error) {
	out, err := s.Identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("getting caller identity for %s: %w", s.Profile.Name, err)
	}
	return aws.ToString(out.Account), nil
}

// VerifyAccount checks the credentials match the account number taken from
// the profile's role ARN.
func (s *Session) VerifyAccount(ctx context.Context) error {
	account, err := s.AccountNumber(ctx)
	if err != nil {
		return err
	}
	if account != s.Profile.AccountNumber {
		return fmt.Errorf("%w: %s is %s, role is in %s", ErrAccountMismatch, s.Profile.Name, account, s.Profile.AccountNumber)
	}
	return nil
}

// TrailNames lists the trails visible in the account.
func (s *Session) TrailNames(ctx context.Context) ([]string, error) {
	out, err := s.Trails.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, fmt.Errorf("describing trails for %s: %w", s.Profile.Name, err)
	}
	names := make([]string, 0, len(out.TrailList))
	for _, trail := range out.TrailList {
		names = append(names, aws.ToString(trail.Name))
	}
	return names, nil
}

// HasTrail reports whether a trail called name exists.
func (s *Session) HasTrail(ctx context.Context, name string) (bool, error) {
	names, err := s.TrailNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// TrailBucket returns the bucket trail name logs to.
func (s *Session) TrailBucket(ctx context.Context, name string) (string, error) {
	out, err := s.Trails.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{TrailNameList: []string{name}})
	if err != nil {
		return "", fmt.Errorf("describing trail %s: %w", name, err)
	}
	for _, trail := range out.TrailList {
		if aws.ToString(trail.Name) == name {
			return aws.ToString(trail.S3BucketName), nil
		}
	}
	return "", fmt.Errorf("trail %s not found in %s", name, s.Profile.Name)
}

// EnsureTrail points trail name at bucket, creating the trail when missing.
func (s *Session) EnsureTrail(ctx context.Context, name, bucket string) error {
	exists, err := s.HasTrail(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.Trails.UpdateTrail(ctx, &cloudtrail.UpdateTrailInput{
			Name:         aws.String(name),
			S3BucketName: aws.String(bucket),
		})
		if err != nil {
			return fmt.Errorf("updating trail %s: %w", name, err)
		}
		s.logger.Info().Str("trail", name).Str("bucket", bucket).Msg("updated trail")
		return nil
	}
	_, err = s.Trails.CreateTrail(ctx, &cloudtrail.CreateTrailInput{
		Name:               aws.String(name),
		S3BucketName:       aws.String(bucket),
		IsMultiRegionTrail: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("creating trail %s: %w", name, err)
	}
	s.logger.Info().Str("trail", name).Str("bucket", bucket).Msg("created trail")
	return nil
}

// DeleteTrail removes trail name. A trail that is already gone is not an
// error.
func (s *Session) DeleteTrail(ctx context.Context, name string) error {
	_, err := s.Trails.DeleteTrail(ctx, &cloudtrail.DeleteTrailInput{Name: aws.String(name)})
	var notFound *cttypes.TrailNotFoundException
	if errors.As(err, &notFound) {
		s.logger.Debug().Str("trail", name).Msg("trail already deleted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting trail %s: %w", name, err)
	}
	s.logger.Info().Str("trail", name).Msg("deleted trail")
	return nil
}

// CreateTrailBucket creates a uniquely named bucket CloudTrail may write to
// and returns its name.
func (s *Session) CreateTrailBucket(ctx context.Context) (string, error) {
	name := NewBucketName()
	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if s.Region != "" && s.Region != DefaultRegion {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.Region),
		}
	}
	if _, err := s.Buckets.CreateBucket(ctx, in); err != nil {
		return "", fmt.Errorf("creating bucket %s: %w", name, err)
	}
	_, err := s.Buckets.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(name),
		Policy: aws.String(TrailBucketPolicy(name, s.Profile.AccountNumber)),
	})
	if err != nil {
		return name, fmt.Errorf("granting cloudtrail access to %s: %w", name, err)
	}
	s.logger.Info().Str("bucket", name).Msg("created bucket")
	return name, nil
}

// DeleteBucket removes an empty bucket.
func (s *Session) DeleteBucket(ctx context.Context, name string) error {
	if _, err := s.Buckets.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return fmt.Errorf("deleting bucket %s: %w", name, err)
	}
	s.logger.Info().Str("bucket", name).Msg("deleted bucket")
	return nil
}

// NewBucketName returns a random, DNS safe bucket name.
func NewBucketName() string {
	return bucketPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TrailBucketPolicy lets CloudTrail check the bucket ACL and write logs for
// account into it.
func TrailBucketPolicy(bucket, account string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "AWSCloudTrailAclCheck",
      "Effect": "Allow",
      "Principal": {"Service": "cloudtrail.amazonaws.com"},
      "Action": "s3:GetBucketAcl",
      "Resource": "arn:aws:s3:::%[1]s"
    },
    {
      "Sid": "AWSCloudTrailWrite",
      "Effect": "Allow",
      "Principal": {"Service": "cloudtrail.amazonaws.com"},
      "Action": "s3:PutObject",
      "Resource": "arn:aws:s3:::%[1]s/AWSLogs/%[2]s/*",
      "Condition": {"StringEquals": {"s3:x-amz-acl": "bucket-owner-full-control"}}
    }
  ]
}`, bucket, account)
}
