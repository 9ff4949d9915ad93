package calclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"staybook/availability"
	"staybook/models"
)

const defaultBaseURL = "http://localhost:8080"

// Client talks to the booking HTTP API.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Token   string
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

type Arrivals struct {
	Arrivals    []string `json:"arrivals"`
	MaxStayDays int      `json:"maxStayDays"`
}

type Month struct {
	Year  int                     `json:"year"`
	Month int                     `json:"month"`
	Days  []availability.DayState `json:"days"`
}

func (c *Client) Arrivals(ctx context.Context) (Arrivals, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/availability/arrivals", nil)
	if err != nil {
		return Arrivals{}, err
	}
	var out Arrivals
	if err := c.doJSON(req, &out); err != nil {
		return Arrivals{}, err
	}
	return out, nil
}

func (c *Client) Calendar(ctx context.Context, year int, month time.Month) (Month, error) {
	path := "/api/calendar/" + strconv.Itoa(year) + "/" + strconv.Itoa(int(month))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Month{}, err
	}
	var out Month
	if err := c.doJSON(req, &out); err != nil {
		return Month{}, err
	}
	return out, nil
}

// Reservations lists active reservations. It needs a staff token.
func (c *Client) Reservations(ctx context.Context) ([]models.Reservation, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/reservations", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Reservation
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate asks the server for its verdict on a stay. A rejected stay is
// not an error.
func (c *Client) Validate(ctx context.Context, from, to string) (availability.Result, error) {
	body := map[string]string{"startDate": from, "endDate": to}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/reservations/validate", body)
	if err != nil {
		return availability.Result{}, err
	}
	var out availability.Result
	if err := c.doJSON(req, &out); err != nil {
		return availability.Result{}, err
	}
	return out, nil
}

// LiveURL maps the base URL onto the websocket endpoint. Admin watchers
// carry their token in the query.
func (c *Client) LiveURL(admin bool) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	if admin {
		if c.Token == "" {
			return "", fmt.Errorf("admin feed needs a token")
		}
		u.Path += "/admin"
		q := url.Values{}
		q.Set("token", c.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, dest any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}
