package transmission

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
)

const (
	SessionIDHeader = "X-Transmission-Session-Id"

	DefaultPort = 9091
	DefaultPath = "/transmission/rpc"

	resultSuccess = "success"
)

type Config struct {
	Host     string
	Port     int
	Path     string
	HTTPS    bool
	Username string
	Password string
}

// URL returns the RPC endpoint.
func (c *Config) URL() string {
	scheme := "http"
	if c.HTTPS {
		scheme = "https"
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	path := c.Path
	if path == "" {
		path = DefaultPath
	}

	u := url.URL{
		Scheme: scheme,
		Host:   c.Host + ":" + strconv.Itoa(port),
		Path:   path,
	}

	return u.String()
}

// Client talks to the Transmission daemon over JSON-RPC.
type Client struct {
	url      string
	username string
	password string
	http     *http.Client
	log      *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

func NewClient(cfg Config, httpClient *http.Client, log *slog.Logger) *Client {
	return NewClientWithURL(cfg.URL(), cfg.Username, cfg.Password, httpClient, log)
}

func NewClientWithURL(rpcURL, username, password string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		url:      rpcURL,
		username: username,
		password: password,
		http:     httpClient,
		log:      log.With(slog.String("item", "TransmissionClient")),
	}
}

// Get returns the torrents with the given ids. Unknown ids are silently missing from the result.
func (c *Client) Get(ctx context.Context, ids []int64) ([]*entity.Torrent, error) {
	if len(ids) < 1 {
		return []*entity.Torrent{}, nil
	}

	var res torrentGetResult
	if err := c.call(ctx, "torrent-get", &torrentGetArgs{IDs: ids, Fields: torrentFields}, &res); err != nil {
		return nil, err
	}

	return toEntities(res.Torrents), nil
}

// All returns every torrent, newest first.
func (c *Client) All(ctx context.Context) ([]*entity.Torrent, error) {
	var res torrentGetResult
	if err := c.call(ctx, "torrent-get", &torrentGetArgs{Fields: torrentFields}, &res); err != nil {
		return nil, err
	}

	torrents := toEntities(res.Torrents)
	slices.SortStableFunc(torrents, func(a, b *entity.Torrent) int {
		if n := b.AddedDate.Compare(a.AddedDate); n != 0 {
			return n
		}

		return cmp.Compare(b.ID, a.ID)
	})

	return torrents, nil
}

// AddURL adds a torrent by URL or magnet link.
func (c *Client) AddURL(ctx context.Context, torrentURL string) (*entity.Torrent, error) {
	return c.add(ctx, &torrentAddArgs{Filename: torrentURL})
}

// AddBase64 adds a torrent from base64 encoded .torrent content.
func (c *Client) AddBase64(ctx context.Context, data string) (*entity.Torrent, error) {
	return c.add(ctx, &torrentAddArgs{MetaInfo: data})
}

func (c *Client) add(ctx context.Context, args *torrentAddArgs) (*entity.Torrent, error) {
	var res torrentAddResult
	if err := c.call(ctx, "torrent-add", args, &res); err != nil {
		return nil, err
	}

	added := res.Added
	if added == nil {
		added = res.Duplicate
	}

	if added == nil {
		return nil, fmt.Errorf("%w: torrent-add returned no torrent", common.ErrRPC)
	}

	c.log.Info("Torrent added", slog.Int64("torrent_id", int64(added.ID)), slog.String("name", added.Name), slog.Bool("duplicate", res.Added == nil))

	return &entity.Torrent{
		ID:   int64(added.ID),
		Name: added.Name,
	}, nil
}

// Remove removes the torrent and optionally its downloaded data.
func (c *Client) Remove(ctx context.Context, id int64, deleteData bool) error {
	return c.call(ctx, "torrent-remove", &torrentRemoveArgs{IDs: []int64{id}, DeleteLocalData: deleteData}, nil)
}

// Session returns the download dir, free space and daemon version.
func (c *Client) Session(ctx context.Context) (*entity.SessionInfo, error) {
	var res sessionGetResult
	args := &sessionGetArgs{Fields: []string{"download-dir", "download-dir-free-space", "version"}}
	if err := c.call(ctx, "session-get", args, &res); err != nil {
		return nil, err
	}

	info := &entity.SessionInfo{
		DownloadDir: res.DownloadDir,
		Version:     res.Version,
	}

	if res.DownloadDirFreeSpace != nil {
		info.FreeSpaceBytes = *res.DownloadDirFreeSpace

		return info, nil
	}

	var fs freeSpaceResult
	if err := c.call(ctx, "free-space", &freeSpaceArgs{Path: res.DownloadDir}, &fs); err != nil {
		return nil, err
	}
	info.FreeSpaceBytes = fs.SizeBytes

	return info, nil
}

func (c *Client) call(ctx context.Context, method string, args any, out any) error {
	body, err := json.Marshal(&rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("cannot marshal %s request: %w", method, err)
	}

	// The first attempt may be rejected with 409 to hand out a session id.
	var resp *rpcResponse
	for attempt := 0; attempt < 2 && resp == nil; attempt++ {
		resp, err = c.do(ctx, method, body)
		if err != nil {
			return err
		}
	}

	if resp == nil {
		return fmt.Errorf("%w: %s: session id handshake failed", common.ErrRPC, method)
	}

	if resp.Result != resultSuccess {
		return fmt.Errorf("%w: %s: %s", common.ErrRPC, method, resp.Result)
	}

	if out == nil || len(resp.Arguments) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Arguments, out); err != nil {
		return fmt.Errorf("cannot decode %s response: %w", method, err)
	}

	return nil
}

// do returns nil response and nil error when the session id was refreshed.
func (c *Client) do(ctx context.Context, method string, body []byte) (*rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cannot create %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if id := c.getSessionID(); id != "" {
		req.Header.Set(SessionIDHeader, id)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot call %s: %w", method, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		_, _ = io.Copy(io.Discard, res.Body)
		c.setSessionID(res.Header.Get(SessionIDHeader))

		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s: unexpected status %s", common.ErrRPC, method, res.Status)
	}

	var resp rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("cannot decode %s response: %w", method, err)
	}

	return &resp, nil
}

func (c *Client) getSessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != id {
		c.log.Debug("Session id updated")
	}
	c.sessionID = id
}

func toEntities(torrents []rpcTorrent) []*entity.Torrent {
	res := make([]*entity.Torrent, 0, len(torrents))
	for i := range torrents {
		res = append(res, torrents[i].toEntity())
	}

	return res
}
