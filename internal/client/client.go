package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BrunoKrugel/guestshots/internal/config"
	"github.com/BrunoKrugel/guestshots/internal/model"
	"github.com/go-resty/resty/v2"
)

type Client struct {
	restyClient *resty.Client
	uploadURL   string
	field       string
	token       string
	cookie      *http.Cookie
}

// StatusError is returned when the image host answers with a non-2xx status
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image host returned %s", e.Status)
}

func NewRestyClient(cfg *config.Config) *Client {

	restyClient := resty.New().
		SetTimeout(cfg.Storage.Timeout).
		SetHeader("User-Agent", "guestshots/1").
		SetHeader("Accept", "application/json")

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	restyClient.SetTransport(transport)

	c := &Client{
		restyClient: restyClient,
		uploadURL:   cfg.Storage.UploadURL,
		field:       cfg.Storage.Field,
		token:       cfg.Authorization.Token,
	}

	cookieName, cookieValue := parseCookie(cfg.Authorization.Cookie)
	if cookieValue != "" {
		c.cookie = &http.Cookie{
			Name:  cookieName,
			Value: cookieValue,
		}
	}

	return c
}

// newRequest builds a request per call; resty requests are not safe for
// concurrent use.
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	req := c.restyClient.R().SetContext(ctx)
	if c.token != "" {
		req.SetHeader("Authorization", c.token)
	}
	if c.cookie != nil {
		req.SetCookie(c.cookie)
	}
	return req
}

// Upload posts f to the image host as a multipart form
func (c *Client) Upload(ctx context.Context, f model.File) (*resty.Response, error) {
	resp, err := c.newRequest(ctx).
		SetMultipartField(c.field, f.Name, f.MediaType, bytes.NewReader(f.Data)).
		SetMultipartFormData(map[string]string{
			"name":      f.Name,
			"mediaType": f.MediaType,
		}).
		Post(c.uploadURL)
	if err != nil {
		return resp, fmt.Errorf("upload %s: %w", f.Name, err)
	}

	if !resp.IsSuccess() {
		return resp, &StatusError{Code: resp.StatusCode(), Status: resp.Status()}
	}
	return resp, nil
}

func parseCookie(s string) (name, value string) {
	if s == "" {
		return "", ""
	}
	if strings.Contains(s, "=") {
		parts := strings.SplitN(s, "=", 2)
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "SessaoId", s
}
