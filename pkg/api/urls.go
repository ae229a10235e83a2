package api

import (
	"fmt"
	"strings"
)

// URLs is the endpoint table of one API version. All entries are relative to
// the service root and end with a slash, as the service requires.
type URLs struct {
	CloudAccount   string
	Image          string
	ReportAccounts string
	ReportImages   string
	UserList       string

	UserCreate  string
	TokenCreate string

	InjectAccount  string
	InjectInstance string
}

// NewURLs returns the endpoint table for an API version such as "v1".
func NewURLs(version string) URLs {
	if version == "" {
		version = "v1"
	}
	prefix := fmt.Sprintf("api/%s/", version)
	return URLs{
		CloudAccount:   prefix + "account/",
		Image:          prefix + "image/",
		ReportAccounts: prefix + "report/accounts/",
		ReportImages:   prefix + "report/images/",
		UserList:       prefix + "user/",
		UserCreate:     "auth/users/create/",
		TokenCreate:    "auth/token/create/",
		InjectAccount:  prefix + "internal/account/",
		InjectInstance: prefix + "internal/instance/",
	}
}

// Detail joins a collection URL and an object id: "api/v1/account/" + 3
// becomes "api/v1/account/3/".
func Detail(collection string, id interface{}) string {
	return fmt.Sprintf("%s/%v/", strings.TrimRight(collection, "/"), id)
}
