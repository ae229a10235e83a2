package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReportRequest filters a usage report.
type ReportRequest struct {
	Start     time.Time
	End       time.Time
	AccountID int
	// UserID lets a superuser impersonate another user.
	UserID int
}

// ForWindow is a ReportRequest for window and account.
func ForWindow(window Window, accountID int) ReportRequest {
	return ReportRequest{Start: window.Start, End: window.End, AccountID: accountID}
}

func (rr ReportRequest) QueryString() string {
	params := []string{}

	if !rr.Start.IsZero() {
		params = append(params, fmt.Sprintf("start=%s", rr.Start.UTC().Format(time.RFC3339)))
	}
	if !rr.End.IsZero() {
		params = append(params, fmt.Sprintf("end=%s", rr.End.UTC().Format(time.RFC3339)))
	}
	if rr.AccountID != 0 {
		params = append(params, fmt.Sprintf("account_id=%d", rr.AccountID))
	}
	if rr.UserID != 0 {
		params = append(params, fmt.Sprintf("user_id=%d", rr.UserID))
	}
	if len(params) == 0 {
		return ""
	}
	return fmt.Sprintf("?%s", strings.Join(params, "&"))
}

// AccountOverview is one account's usage summary. Counts and runtimes are
// null when the service has no evidence for the window.
type AccountOverview struct {
	ID           int    `json:"id"`
	CloudAccount string `json:"cloud_account_id"`
	UserID       int    `json:"user_id"`
	Name         string `json:"name"`
	ARN          string `json:"arn"`
	Type         string `json:"type"`

	Images                    *int     `json:"images"`
	Instances                 *int     `json:"instances"`
	RHELInstances             *int     `json:"rhel_instances"`
	OpenShiftInstances        *int     `json:"openshift_instances"`
	RHELRuntimeSeconds        *float64 `json:"rhel_runtime_seconds"`
	OpenShiftRuntimeSeconds   *float64 `json:"openshift_runtime_seconds"`
	RHELMemorySeconds         *float64 `json:"rhel_memory_seconds"`
	OpenShiftMemorySeconds    *float64 `json:"openshift_memory_seconds"`
	RHELVCPUSeconds           *float64 `json:"rhel_vcpu_seconds"`
	OpenShiftVCPUSeconds      *float64 `json:"openshift_vcpu_seconds"`
	RHELImagesChallenged      *int     `json:"rhel_images_challenged"`
	OpenShiftImagesChallenged *int     `json:"openshift_images_challenged"`
}

// AccountsReport is the body of GET /report/accounts/.
type AccountsReport struct {
	CloudAccountOverviews []AccountOverview `json:"cloud_account_overviews"`
}

// ImageReportItem is one image's usage in a window.
type ImageReportItem struct {
	ID                  int     `json:"id"`
	CloudImageID        string  `json:"cloud_image_id"`
	EC2AMIID            string  `json:"ec2_ami_id"`
	Name                *string `json:"name"`
	RHEL                bool    `json:"rhel"`
	RHELChallenged      bool    `json:"rhel_challenged"`
	OpenShift           bool    `json:"openshift"`
	OpenShiftChallenged bool    `json:"openshift_challenged"`
	InstancesSeen       int     `json:"instances_seen"`
	RuntimeSeconds      float64 `json:"runtime_seconds"`
	MemorySeconds       float64 `json:"memory_seconds"`
	VCPUSeconds         float64 `json:"vcpu_seconds"`
}

// AMIID returns whichever image identifier the service populated.
func (i ImageReportItem) AMIID() string {
	if i.EC2AMIID != "" {
		return i.EC2AMIID
	}
	return i.CloudImageID
}

// ImagesReport is the body of GET /report/images/.
type ImagesReport struct {
	Images []ImageReportItem `json:"images"`
}

// GetAccountsReport requests GET /report/accounts/.
func (api *API) GetAccountsReport(ctx context.Context, req ReportRequest, auth Auth) (*AccountsReport, error) {
	resp := &AccountsReport{}
	if _, err := api.call(ctx, http.MethodGet, api.urls.ReportAccounts, req, nil, auth, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetAccountOverview returns the overview of req.AccountID.
func (api *API) GetAccountOverview(ctx context.Context, req ReportRequest, auth Auth) (*AccountOverview, error) {
	report, err := api.GetAccountsReport(ctx, req, auth)
	if err != nil {
		return nil, err
	}
	for i := range report.CloudAccountOverviews {
		if report.CloudAccountOverviews[i].ID == req.AccountID || req.AccountID == 0 {
			return &report.CloudAccountOverviews[i], nil
		}
	}
	return nil, fmt.Errorf("account %d not found in accounts report", req.AccountID)
}

// GetImagesReport requests GET /report/images/.
func (api *API) GetImagesReport(ctx context.Context, req ReportRequest, auth Auth) (*ImagesReport, error) {
	resp := &ImagesReport{}
	if _, err := api.call(ctx, http.MethodGet, api.urls.ReportImages, req, nil, auth, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RawAccountsReport returns the unchecked response, for windows the service
// is expected to reject.
func (api *API) RawAccountsReport(ctx context.Context, req ReportRequest, auth Auth) (*Response, error) {
	return api.GET(ctx, api.urls.ReportAccounts, req, auth)
}
