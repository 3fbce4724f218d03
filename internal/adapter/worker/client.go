package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	playerIDHeader  = "X-Player-ID"
	playerKeyHeader = "X-Player-Key"
)

type Config struct {
	BaseURL     string
	PlayerID    string
	PlayerKey   string
	DialTimeout time.Duration
}

// Client talks to the Worker API for one player. It implements both
// ports.StateRemote and ports.BaseRemote.
type Client struct {
	cfg Config
	hc  *client.Client
}

func New(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("worker: base url is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	hc, err := client.NewClient(client.WithDialTimeout(cfg.DialTimeout))
	if err != nil {
		return nil, fmt.Errorf("worker: new hertz client: %w", err)
	}
	return &Client{cfg: cfg, hc: hc}, nil
}

// APIError is a non-2xx answer. Unwrap maps the status onto the shared port
// errors so callers can branch with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("worker api %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return ports.ErrThrottled
	case e.Status == http.StatusRequestEntityTooLarge:
		return ports.ErrTooLarge
	case e.Status == http.StatusNotFound:
		return ports.ErrNotFound
	case e.Status == http.StatusConflict:
		return ports.ErrConflict
	case e.Status >= 500:
		return ports.ErrTransient
	default:
		return nil
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	UpdatedAt string `json:"updatedAt"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.SetMethod(method)
	req.Header.Set(playerIDHeader, c.cfg.PlayerID)
	req.Header.Set(playerKeyHeader, c.cfg.PlayerKey)
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("worker: encode %s: %w", path, err)
		}
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(body)
	}

	if err := c.hc.Do(ctx, req, resp); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ports.ErrTransient, method, path, err)
	}

	status := resp.StatusCode()
	body := resp.Body()
	if status >= 200 && status < 300 {
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("worker: decode %s: %w", path, err)
		}
		return nil
	}

	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	if status == http.StatusConflict && path == "/base/state" {
		return &ports.StaleStateError{UpdatedAt: env.UpdatedAt}
	}
	return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message, Details: env.Error.Details}
}

type stateBody struct {
	StateJSON json.RawMessage `json:"stateJson"`
	UpdatedAt *string         `json:"updatedAt"`
}

func (c *Client) FetchState(ctx context.Context) (ports.RemoteState, error) {
	var body stateBody
	if err := c.do(ctx, consts.MethodGet, "/base/state", nil, &body); err != nil {
		return ports.RemoteState{}, err
	}
	return ports.RemoteState{StateJSON: body.StateJSON, UpdatedAt: body.UpdatedAt}, nil
}

type saveBody struct {
	StateJSON       json.RawMessage `json:"stateJson"`
	ClientUpdatedAt *string         `json:"clientUpdatedAt,omitempty"`
}

func (c *Client) SaveState(ctx context.Context, stateJSON json.RawMessage, clientUpdatedAt *string) (string, error) {
	var out struct {
		OK        bool   `json:"ok"`
		UpdatedAt string `json:"updatedAt"`
	}
	if err := c.do(ctx, consts.MethodPost, "/base/state", saveBody{StateJSON: stateJSON, ClientUpdatedAt: clientUpdatedAt}, &out); err != nil {
		return "", err
	}
	return out.UpdatedAt, nil
}

type baseBody struct {
	Base struct {
		Levels  map[economy.BuildingID]int `json:"levels"`
		Charges int                        `json:"charges"`
		Version int64                      `json:"version"`
	} `json:"base"`
	Resources economy.Resources `json:"resources"`
	Collected economy.Resources `json:"collected"`
	Charges   *int              `json:"charges"`
	Version   int64             `json:"version"`
}

func (b baseBody) remote() ports.RemoteBase {
	out := ports.RemoteBase{
		Resources: b.Resources,
		Levels:    b.Base.Levels,
		Collected: b.Collected,
		Charges:   b.Base.Charges,
		Version:   b.Base.Version,
	}
	if b.Charges != nil {
		out.Charges = *b.Charges
	}
	if b.Version > 0 {
		out.Version = b.Version
	}
	return out
}

func (c *Client) Build(ctx context.Context, buildingType economy.BuildingID) (ports.RemoteBase, error) {
	var body baseBody
	in := map[string]string{"buildingType": string(buildingType)}
	if err := c.do(ctx, consts.MethodPost, "/base/build", in, &body); err != nil {
		return ports.RemoteBase{}, err
	}
	return body.remote(), nil
}

func (c *Client) Collect(ctx context.Context) (ports.RemoteBase, error) {
	var body baseBody
	if err := c.do(ctx, consts.MethodPost, "/base/collect", nil, &body); err != nil {
		return ports.RemoteBase{}, err
	}
	return body.remote(), nil
}

func (c *Client) UseAction(ctx context.Context, key economy.ActionKey) (ports.RemoteBase, error) {
	var body baseBody
	in := map[string]string{"buildingId": string(key.Building), "actionId": string(key.Action)}
	if err := c.do(ctx, consts.MethodPost, "/base/action", in, &body); err != nil {
		return ports.RemoteBase{}, err
	}
	return body.remote(), nil
}

type statusBody struct {
	Base struct {
		Resources economy.Resources          `json:"resources"`
		Levels    map[economy.BuildingID]int `json:"levels"`
		Charges   int                        `json:"charges"`
		Version   int64                      `json:"version"`
	} `json:"base"`
}

func (c *Client) Status(ctx context.Context) (ports.RemoteBase, error) {
	var body statusBody
	if err := c.do(ctx, consts.MethodGet, "/base/status", nil, &body); err != nil {
		return ports.RemoteBase{}, err
	}
	return ports.RemoteBase{
		Resources: body.Base.Resources,
		Levels:    body.Base.Levels,
		Charges:   body.Base.Charges,
		Version:   body.Base.Version,
	}, nil
}

// Register issues a fresh player identity. It needs no credentials.
func Register(ctx context.Context, baseURL string) (playerID, playerKey string, err error) {
	c, err := New(Config{BaseURL: baseURL})
	if err != nil {
		return "", "", err
	}
	var out struct {
		PlayerID  string `json:"playerId"`
		PlayerKey string `json:"playerKey"`
	}
	if err := c.do(ctx, consts.MethodPost, "/player/register", nil, &out); err != nil {
		return "", "", err
	}
	return out.PlayerID, out.PlayerKey, nil
}

var (
	_ ports.StateRemote = (*Client)(nil)
	_ ports.BaseRemote  = (*Client)(nil)
)
