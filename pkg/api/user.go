package api

import (
	"context"
	"fmt"
	"net/http"
)

// User is a service user account. Password is only known to the harness for
// users it created.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
	IsSuperuser bool   `json:"is_superuser"`
}

type tokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// CreateUser registers a new user with the given credentials.
func (api *API) CreateUser(ctx context.Context, username, password string) (*User, error) {
	payload := map[string]string{
		"username": username,
		"email":    username,
		"password": password,
	}
	user := &User{}
	if _, err := api.call(ctx, http.MethodPost, api.urls.UserCreate, nil, payload, nil, user); err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}
	user.Username = username
	user.Password = password
	return user, nil
}

// Token logs user in and returns token credentials.
func (api *API) Token(ctx context.Context, user User) (TokenAuth, error) {
	payload := map[string]string{
		"username": user.Username,
		"password": user.Password,
	}
	out := &tokenResponse{}
	if _, err := api.call(ctx, http.MethodPost, api.urls.TokenCreate, nil, payload, nil, out); err != nil {
		return "", fmt.Errorf("creating token for %s: %w", user.Username, err)
	}
	if out.AuthToken == "" {
		return "", fmt.Errorf("creating token for %s: empty auth_token", user.Username)
	}
	return TokenAuth(out.AuthToken), nil
}

// ListUsers requests GET /user/; only superusers may list.
func (api *API) ListUsers(ctx context.Context, auth Auth) ([]User, error) {
	var users []User
	if _, err := api.call(ctx, http.MethodGet, api.urls.UserList, nil, nil, auth, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SuperuserID returns the id of the first superuser listed.
func (api *API) SuperuserID(ctx context.Context, auth Auth) (int, error) {
	users, err := api.ListUsers(ctx, auth)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if u.IsSuperuser {
			return u.ID, nil
		}
	}
	return 0, fmt.Errorf("no superuser found among %d users", len(users))
}
