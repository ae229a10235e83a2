package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cloudigrade/integrade/pkg/api"
	"github.com/cloudigrade/integrade/pkg/log"
	"github.com/cloudigrade/integrade/pkg/wait"
)

var (
	ErrTextNotFound    = errors.New("text not found on page")
	ErrElementNotFound = errors.New("element not found")
	ErrNotClickable    = errors.New("element is not a link or button")
)

// Page is a handle on one rendered page of the front end.
type Page interface {
	// Refresh reloads the current page.
	Refresh(ctx context.Context) error
	// Source is the current markup.
	Source() string
	// Click activates the first link or button whose text contains text.
	Click(ctx context.Context, text string) error
	// Fill types value into the input with the placeholder and submits it.
	Fill(ctx context.Context, placeholder, value string) error
}

// FindText waits up to timeout for token to appear on page, refreshing
// between checks.
func FindText(ctx context.Context, page Page, token string, timeout time.Duration) error {
	err := wait.Until(ctx, wait.DefaultConfig(timeout), fmt.Sprintf("%q on page", token), func(ctx context.Context) (bool, error) {
		if HasText(page.Source(), token) {
			return true, nil
		}
		return false, page.Refresh(ctx)
	})
	if errors.Is(err, wait.ErrTimeout) {
		return fmt.Errorf("%w: %q", ErrTextNotFound, token)
	}
	return err
}

// FindTextIn is FindText limited to the element scope selects.
func FindTextIn(ctx context.Context, page Page, scope Scope, token string, timeout time.Duration) error {
	err := wait.Until(ctx, wait.DefaultConfig(timeout), fmt.Sprintf("%q in %s", token, scope), func(ctx context.Context) (bool, error) {
		if el, ok := scope.In(page.Source()); ok && el.HasText(token) {
			return true, nil
		}
		return false, page.Refresh(ctx)
	})
	if errors.Is(err, wait.ErrTimeout) {
		return fmt.Errorf("%w: %q in %s", ErrTextNotFound, token, scope)
	}
	return err
}

// PageHasText reports whether token shows up on page within timeout.
func PageHasText(ctx context.Context, page Page, token string, timeout time.Duration) bool {
	return FindText(ctx, page, token, timeout) == nil
}

// FindElements waits up to timeout for at least n elements carrying class.
func FindElements(ctx context.Context, page Page, class string, n int, timeout time.Duration) ([]Element, error) {
	elements, err := wait.Value(ctx, wait.DefaultConfig(timeout), fmt.Sprintf("%d .%s elements", n, class),
		func(ctx context.Context) ([]Element, error) {
			found := ElementsByClass(page.Source(), class)
			if len(found) < n {
				return found, page.Refresh(ctx)
			}
			return found, nil
		},
		func(found []Element) bool { return len(found) >= n },
	)
	if errors.Is(err, wait.ErrTimeout) {
		return elements, fmt.Errorf("%w: .%s (found %d, want %d)", ErrElementNotFound, class, len(elements), n)
	}
	return elements, err
}

// HTMLPage is a Page over server-rendered markup fetched with plain HTTP.
// Links are followed and forms are submitted; no script runs.
type HTMLPage struct {
	client  *http.Client
	auth    api.Auth
	current *url.URL
	source  string
	logger  zerolog.Logger
}

// NewHTMLPage builds a page that sends requests through client, signed with
// auth when it is not nil. Call Open to load the first page.
func NewHTMLPage(client *http.Client, auth api.Auth) *HTMLPage {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLPage{
		client: client,
		auth:   auth,
		logger: log.With("ui"),
	}
}

// Open navigates to rawURL.
func (p *HTMLPage) Open(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("error parsing page url %q: %w", rawURL, err)
	}
	return p.load(ctx, http.MethodGet, u, nil)
}

// URL is the address of the current page.
func (p *HTMLPage) URL() string {
	if p.current == nil {
		return ""
	}
	return p.current.String()
}

func (p *HTMLPage) Refresh(ctx context.Context) error {
	if p.current == nil {
		return errors.New("no page has been opened")
	}
	return p.load(ctx, http.MethodGet, p.current, nil)
}

func (p *HTMLPage) Source() string {
	return p.source
}

func (p *HTMLPage) Click(ctx context.Context, text string) error {
	root, err := parse(p.source)
	if err != nil {
		return err
	}
	return p.clickWithin(ctx, root, text)
}

// ClickIn is Click limited to the element scope selects, for controls that
// repeat on the page such as the dimension menu of each graph card.
func (p *HTMLPage) ClickIn(ctx context.Context, scope Scope, text string) error {
	root, err := parse(p.source)
	if err != nil {
		return err
	}
	n := scope.node(root)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, scope)
	}
	return p.clickWithin(ctx, n, text)
}

func (p *HTMLPage) clickWithin(ctx context.Context, root *html.Node, text string) error {
	var target *html.Node
	walk(root, func(n *html.Node) bool {
		if target != nil {
			return false
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.A || n.DataAtom == atom.Button) && elementOf(n).HasText(text) {
			target = n
			return false
		}
		return true
	})
	if target == nil {
		return fmt.Errorf("%w: link or button %q", ErrElementNotFound, text)
	}

	if target.DataAtom == atom.A {
		href, ok := attr(target, "href")
		if !ok {
			return fmt.Errorf("%w: link %q has no href", ErrNotClickable, text)
		}
		u, err := p.resolve(href)
		if err != nil {
			return err
		}
		return p.load(ctx, http.MethodGet, u, nil)
	}

	form := enclosing(target, atom.Form)
	if form == nil {
		return fmt.Errorf("%w: button %q is outside any form", ErrNotClickable, text)
	}
	values := formValues(form)
	if name, ok := attr(target, "name"); ok {
		v, _ := attr(target, "value")
		values.Set(name, v)
	}
	return p.submit(ctx, form, values)
}

func (p *HTMLPage) Fill(ctx context.Context, placeholder, value string) error {
	root, err := parse(p.source)
	if err != nil {
		return err
	}
	var input *html.Node
	walk(root, func(n *html.Node) bool {
		if input != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Input {
			if ph, _ := attr(n, "placeholder"); ph == placeholder {
				input = n
				return false
			}
		}
		return true
	})
	if input == nil {
		return fmt.Errorf("%w: input with placeholder %q", ErrElementNotFound, placeholder)
	}
	name, ok := attr(input, "name")
	if !ok {
		return fmt.Errorf("%w: input %q has no name", ErrNotClickable, placeholder)
	}
	form := enclosing(input, atom.Form)
	if form == nil {
		return fmt.Errorf("%w: input %q is outside any form", ErrNotClickable, placeholder)
	}
	values := formValues(form)
	values.Set(name, value)
	return p.submit(ctx, form, values)
}

func (p *HTMLPage) submit(ctx context.Context, form *html.Node, values url.Values) error {
	action, _ := attr(form, "action")
	u, err := p.resolve(action)
	if err != nil {
		return err
	}
	method, _ := attr(form, "method")
	if strings.EqualFold(method, http.MethodPost) {
		return p.load(ctx, http.MethodPost, u, values)
	}
	q := *u
	q.RawQuery = values.Encode()
	return p.load(ctx, http.MethodGet, &q, nil)
}

func (p *HTMLPage) resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("error parsing %q: %w", ref, err)
	}
	if p.current == nil {
		return r, nil
	}
	return p.current.ResolveReference(r), nil
}

func (p *HTMLPage) load(ctx context.Context, method string, u *url.URL, form url.Values) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("error creating %s request: %w", method, err)
	}
	req.Header.Set("Accept", "text/html")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if p.auth != nil {
		p.auth.Apply(req)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error requesting %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading %s %s: %w", method, u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned %d", method, u, resp.StatusCode)
	}

	p.logger.Debug().Str("method", method).Str("url", u.String()).Int("bytes", len(data)).Msg("page")
	p.current = resp.Request.URL
	p.source = string(data)
	return nil
}

func enclosing(n *html.Node, a atom.Atom) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == a {
			return p
		}
	}
	return nil
}

// formValues collects the named inputs of form, leaving out buttons.
func formValues(form *html.Node) url.Values {
	values := url.Values{}
	walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Input {
			return true
		}
		name, ok := attr(n, "name")
		if !ok {
			return true
		}
		switch typ, _ := attr(n, "type"); strings.ToLower(typ) {
		case "submit", "button", "image", "reset":
			return true
		}
		v, _ := attr(n, "value")
		values.Set(name, v)
		return true
	})
	return values
}
