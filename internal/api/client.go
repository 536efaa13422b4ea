// Package api is a client for the demand/project REST backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/party"
)

// StatusError is returned by reads that get a non-2xx answer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client talks to one backend node.
type Client struct {
	BaseURL     string
	DemandBase  string
	ProjectBase string
	PeersPath   string
	HTTPClient  *http.Client
	log         *logrus.Entry
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets a per-request timeout on a copy of the current
// http.Client. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.HTTPClient
		hc.Timeout = d
		c.HTTPClient = &hc
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithPaths overrides the demand and project API roots.
func WithPaths(demandBase, projectBase string) Option {
	return func(c *Client) {
		c.DemandBase = withSlash(demandBase)
		c.ProjectBase = withSlash(projectBase)
	}
}

// WithPeersPath overrides the peers endpoint.
func WithPeersPath(p string) Option {
	return func(c *Client) { c.PeersPath = p }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.log = l.WithField("component", "api") }
}

// New creates a client rooted at baseURL. No request timeout is set.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		DemandBase:  "/api/demand/",
		ProjectBase: "/api/project/",
		PeersPath:   "/api/demand/peers",
		HTTPClient:  &http.Client{},
		log:         logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func withSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func (c *Client) base(b Base) string {
	if b == ProjectBase {
		return c.ProjectBase
	}
	return c.DemandBase
}

func (c *Client) kindPath(kind Kind) (string, error) {
	switch kind {
	case KindDemands:
		return c.DemandBase, nil
	case KindProjects:
		return c.ProjectBase, nil
	case KindAllocations:
		return c.ProjectBase + "allocations", nil
	default:
		return "", fmt.Errorf("unknown kind %q", kind)
	}
}

func (c *Client) get(ctx context.Context, path string, fn func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return fn(resp.Body)
}

// List fetches the whole collection for kind in server order.
func (c *Client) List(ctx context.Context, kind Kind) ([]Record, error) {
	path, err := c.kindPath(kind)
	if err != nil {
		return nil, err
	}
	var out []Record
	err = c.get(ctx, path, func(r io.Reader) error {
		recs, err := decodeCollection(r)
		out = recs
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

// Me returns the identity of the node the client is attached to.
func (c *Client) Me(ctx context.Context) (party.Name, error) {
	var v struct {
		Me string `json:"me"`
	}
	if err := c.getJSON(ctx, c.DemandBase+"me", &v); err != nil {
		return party.Name{}, fmt.Errorf("me: %w", err)
	}
	return party.Parse(v.Me), nil
}

// Peers returns every other node on the network.
func (c *Client) Peers(ctx context.Context) ([]string, error) {
	return c.names(ctx, c.PeersPath, "peers")
}

// PlatformLeads returns the platform-lead nodes other than this one.
func (c *Client) PlatformLeads(ctx context.Context) ([]string, error) {
	return c.names(ctx, c.DemandBase+"platformLeads", "plPeers")
}

// DeliveryTeams returns the delivery-team nodes.
func (c *Client) DeliveryTeams(ctx context.Context) ([]string, error) {
	return c.names(ctx, c.ProjectBase+"deliveryTeams", "deliveryTeams")
}

// ProjectByCode fetches a single project by its project code.
func (c *Client) ProjectByCode(ctx context.Context, code string) (Record, error) {
	var env envelope
	if err := c.getJSON(ctx, c.ProjectBase+"code/"+url.PathEscape(code), &env); err != nil {
		return Record{}, fmt.Errorf("project %s: %w", code, err)
	}
	return Record{Key: code, Data: env.State.Data}, nil
}

func (c *Client) names(ctx context.Context, path, field string) ([]string, error) {
	var v map[string][]string
	if err := c.getJSON(ctx, path, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v[field], nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.get(ctx, path, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(out)
	})
}

// Mutate posts m. Every outcome, including transport failure, comes back as
// a Result; nothing is retried.
func (c *Client) Mutate(ctx context.Context, m Mutation) Result {
	target := c.BaseURL + c.base(m.Base) + m.Path
	if q := m.Query(); q != "" {
		target += "?" + q
	}
	log := c.log.WithField("path", m.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return Result{Err: err}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("mutation failed")
		return Result{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	res := Result{Status: resp.StatusCode, Body: string(body)}
	if err != nil {
		res.Err = fmt.Errorf("read response: %w", err)
	}
	log.WithField("status", resp.StatusCode).Info("mutation answered")
	return res
}
