package api

import (
	"context"
	"net/http"
)

// Image is a machine image known to the service.
type Image struct {
	ID                  int          `json:"id"`
	URL                 string       `json:"url,omitempty"`
	EC2AMIID            string       `json:"ec2_ami_id"`
	Name                *string      `json:"name"`
	Platform            string       `json:"platform,omitempty"`
	InspectionStatus    string       `json:"inspection_status,omitempty"`
	IsEncrypted         bool         `json:"is_encrypted"`
	RHEL                bool         `json:"rhel"`
	RHELDetected        bool         `json:"rhel_detected"`
	RHELChallenged      bool         `json:"rhel_challenged"`
	OpenShift           bool         `json:"openshift"`
	OpenShiftDetected   bool         `json:"openshift_detected"`
	OpenShiftChallenged bool         `json:"openshift_challenged"`
	ResourceType        ResourceType `json:"resourcetype,omitempty"`
}

// ImageList is a paginated image listing.
type ImageList struct {
	Count   int     `json:"count"`
	Results []Image `json:"results"`
}

// ListImages requests GET /image/.
func (api *API) ListImages(ctx context.Context, auth Auth) (*ImageList, error) {
	list := &ImageList{}
	if _, err := api.call(ctx, http.MethodGet, api.urls.Image, nil, nil, auth, list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetImage requests GET /image/{id}/.
func (api *API) GetImage(ctx context.Context, id int, auth Auth) (*Image, error) {
	img := &Image{}
	if _, err := api.call(ctx, http.MethodGet, Detail(api.urls.Image, id), nil, nil, auth, img); err != nil {
		return nil, err
	}
	return img, nil
}

// UpdateImage PUTs the full image back, typically after toggling a
// challenge flag.
func (api *API) UpdateImage(ctx context.Context, img Image, auth Auth) (*Image, error) {
	out := &Image{}
	if _, err := api.call(ctx, http.MethodPut, Detail(api.urls.Image, img.ID), nil, img, auth, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChallengeImage flips the challenge flag of one tag ("rhel" or
// "openshift") and stores the image.
func (api *API) ChallengeImage(ctx context.Context, id int, tag string, challenged bool, auth Auth) (*Image, error) {
	img, err := api.GetImage(ctx, id, auth)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "rhel":
		img.RHELChallenged = challenged
	case "openshift":
		img.OpenShiftChallenged = challenged
	}
	return api.UpdateImage(ctx, *img, auth)
}
