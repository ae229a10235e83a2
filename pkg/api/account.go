package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ResourceType discriminates cloud account variants on the wire.
type ResourceType string

const (
	ResourceTypeAWS ResourceType = "AwsAccount"
)

var ErrMissingField = errors.New("missing required field")

// CloudAccountRequest is a create or update payload for one cloud account
// variant.
type CloudAccountRequest interface {
	ResourceType() ResourceType
	Validate() error
}

// AwsAccountRequest registers an AWS account by the role the service assumes.
type AwsAccountRequest struct {
	AccountARN string
	Name       string
}

func (r AwsAccountRequest) ResourceType() ResourceType {
	return ResourceTypeAWS
}

func (r AwsAccountRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.AccountARN) == "" {
		missing = append(missing, "account_arn")
	}
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

func (r AwsAccountRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountARN   string       `json:"account_arn"`
		Name         string       `json:"name"`
		ResourceType ResourceType `json:"resourcetype"`
	}{r.AccountARN, r.Name, r.ResourceType()})
}

// AwsAccountPatch renames an AWS account.
type AwsAccountPatch struct {
	Name string
}

func (r AwsAccountPatch) ResourceType() ResourceType {
	return ResourceTypeAWS
}

func (r AwsAccountPatch) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	return nil
}

func (r AwsAccountPatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name         string       `json:"name"`
		ResourceType ResourceType `json:"resourcetype"`
	}{r.Name, r.ResourceType()})
}

// RawPayload is sent as-is and skips validation. Negative tests use it to
// submit deliberately incomplete bodies.
type RawPayload map[string]interface{}

// CloudAccount is the service's representation of a registered account.
type CloudAccount struct {
	ID           int          `json:"id"`
	URL          string       `json:"url"`
	UserID       int          `json:"user_id"`
	Name         string       `json:"name"`
	AccountARN   string       `json:"account_arn"`
	AWSAccountID string       `json:"aws_account_id"`
	ResourceType ResourceType `json:"resourcetype"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Equal compares the identifying fields; timestamps are not compared.
func (a CloudAccount) Equal(b CloudAccount) bool {
	return a.ID == b.ID && a.UserID == b.UserID && a.Name == b.Name &&
		a.AccountARN == b.AccountARN && a.AWSAccountID == b.AWSAccountID &&
		a.ResourceType == b.ResourceType
}

// CloudAccountList is a paginated account listing.
type CloudAccountList struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []CloudAccount `json:"results"`
}

// AWSAccountIDs returns the AWS account ids present in the listing.
func (l CloudAccountList) AWSAccountIDs() map[string]bool {
	ids := make(map[string]bool, len(l.Results))
	for _, acct := range l.Results {
		ids[acct.AWSAccountID] = true
	}
	return ids
}

// CreateCloudAccount validates and posts req, returning the raw response so
// that callers may assert on 400 outcomes.
func (api *API) CreateCloudAccount(ctx context.Context, req CloudAccountRequest, auth Auth) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return api.POST(ctx, api.urls.CloudAccount, req, auth)
}

// CreateRawCloudAccount posts an unvalidated payload.
func (api *API) CreateRawCloudAccount(ctx context.Context, payload RawPayload, auth Auth) (*Response, error) {
	return api.POST(ctx, api.urls.CloudAccount, payload, auth)
}

// ListCloudAccounts requests GET /account/.
func (api *API) ListCloudAccounts(ctx context.Context, auth Auth) (*CloudAccountList, error) {
	list := &CloudAccountList{}
	if _, err := api.call(ctx, http.MethodGet, api.urls.CloudAccount, nil, nil, auth, list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetCloudAccount requests GET /account/{id}/.
func (api *API) GetCloudAccount(ctx context.Context, id int, auth Auth) (*CloudAccount, error) {
	acct := &CloudAccount{}
	if _, err := api.call(ctx, http.MethodGet, Detail(api.urls.CloudAccount, id), nil, nil, auth, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// UpdateCloudAccount replaces an account with PUT.
func (api *API) UpdateCloudAccount(ctx context.Context, id int, req CloudAccountRequest, auth Auth) (*CloudAccount, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	acct := &CloudAccount{}
	if _, err := api.call(ctx, http.MethodPut, Detail(api.urls.CloudAccount, id), nil, req, auth, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// PatchCloudAccount partially updates an account.
func (api *API) PatchCloudAccount(ctx context.Context, id int, req CloudAccountRequest, auth Auth) (*CloudAccount, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	acct := &CloudAccount{}
	if _, err := api.call(ctx, http.MethodPatch, Detail(api.urls.CloudAccount, id), nil, req, auth, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// DeleteCloudAccount returns the raw response; some deployments answer 405.
func (api *API) DeleteCloudAccount(ctx context.Context, id int, auth Auth) (*Response, error) {
	return api.DELETE(ctx, Detail(api.urls.CloudAccount, id), auth)
}
