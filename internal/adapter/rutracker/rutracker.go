package rutracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultBaseURL = "https://rutracker.org/forum/"

	sessionCookie = "bb_session"
	loginButton   = "вход"
	maxBodySize   = 10 << 20
)

var errLoginRequired = errors.New("login required")

type Config struct {
	BaseURL  string
	Login    string
	Password string
}

// Client scrapes the rutracker forum. Pages are served in windows-1251.
type Client struct {
	base     *url.URL
	login    string
	password string
	http     *http.Client

	mu       sync.Mutex
	loggedIn bool

	log *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse tracker url: %w", err)
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	return &Client{
		base:     base,
		login:    cfg.Login,
		password: cfg.Password,
		http:     httpClient,
		log:      log.With(slog.String("item", "RutrackerClient")),
	}, nil
}

// TopicURL returns the forum page of the topic.
func (c *Client) TopicURL(topicID int64) string {
	return c.resolve("viewtopic.php", url.Values{"t": {strconv.FormatInt(topicID, 10)}})
}

// Search returns the topics matching query in the order the tracker lists them.
func (c *Client) Search(ctx context.Context, query string) ([]entity.SearchResult, error) {
	var results []entity.SearchResult

	err := c.withLogin(ctx, func() error {
		q, err := encode(query)
		if err != nil {
			return err
		}

		body, err := c.get(ctx, c.resolve("tracker.php", url.Values{"nm": {q}}))
		if err != nil {
			return err
		}

		results, err = c.parseSearch(body)

		return err
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("Search", slog.String("query", query), slog.Int("found", len(results)))

	return results, nil
}

// TorrentFile downloads the .torrent file of the topic.
func (c *Client) TorrentFile(ctx context.Context, topicID int64) ([]byte, error) {
	var data []byte

	err := c.withLogin(ctx, func() error {
		body, err := c.get(ctx, c.resolve("dl.php", url.Values{"t": {strconv.FormatInt(topicID, 10)}}))
		if err != nil {
			return err
		}

		// A bencoded torrent is a dictionary. Anything else is an HTML page.
		if len(body) == 0 || body[0] != 'd' {
			if isLoginPage(body) {
				return errLoginRequired
			}

			return fmt.Errorf("topic %d has no torrent file", topicID)
		}

		data = body

		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (c *Client) withLogin(ctx context.Context, fn func() error) error {
	if err := c.ensureLogin(ctx, false); err != nil {
		return err
	}

	err := fn()
	if !errors.Is(err, errLoginRequired) {
		return err
	}

	c.log.Info("Session expired, logging in again")

	if err := c.ensureLogin(ctx, true); err != nil {
		return err
	}

	if err := fn(); err != nil {
		if errors.Is(err, errLoginRequired) {
			return common.ErrTrackerLogin
		}

		return err
	}

	return nil
}

func (c *Client) ensureLogin(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn && !force {
		return nil
	}
	c.loggedIn = false

	if c.login == "" {
		return fmt.Errorf("%w: credentials are not set", common.ErrTrackerLogin)
	}

	form := url.Values{}
	for k, v := range map[string]string{
		"login_username": c.login,
		"login_password": c.password,
		"login":          loginButton,
	} {
		ev, err := encode(v)
		if err != nil {
			return err
		}
		form.Set(k, ev)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("login.php", nil), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot login: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if !c.hasSession() {
		return common.ErrTrackerLogin
	}

	c.loggedIn = true
	c.log.Info("Logged in", slog.String("login", c.login))

	return nil
}

func (c *Client) hasSession() bool {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == sessionCookie && ck.Value != "" {
			return true
		}
	}

	return false
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot get %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s: %s", req.URL.Path, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

func (c *Client) parseSearch(body []byte) ([]entity.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(charmap.Windows1251.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("cannot parse search page: %w", err)
	}

	if doc.Find("#tor-tbl").Length() == 0 {
		if doc.Find("#login-form-full").Length() > 0 {
			return nil, errLoginRequired
		}

		return nil, errors.New("unexpected search page layout")
	}

	results := make([]entity.SearchResult, 0)
	doc.Find("#tor-tbl tr.hl-tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a.tLink")
		id, err := strconv.ParseInt(link.AttrOr("data-topic_id", ""), 10, 64)
		if err != nil || id <= 0 {
			return
		}

		size, _ := strconv.ParseInt(strings.TrimSpace(row.Find("td.tor-size").AttrOr("data-ts_text", "0")), 10, 64)
		seeds, _ := strconv.Atoi(strings.TrimSpace(row.Find("b.seedmed").Text()))

		results = append(results, entity.SearchResult{
			TopicID:      id,
			Title:        strings.TrimSpace(link.Text()),
			TopicURL:     c.TopicURL(id),
			Size:         size,
			Seeds:        seeds,
			Verification: parseVerification(row.Find("td.t-ico span.tor-icon").AttrOr("class", "")),
		})
	})

	return results, nil
}

func parseVerification(class string) entity.Verification {
	for _, cl := range strings.Fields(class) {
		switch cl {
		case "tor-approved":
			return entity.VerificationApproved
		case "tor-dup":
			return entity.VerificationDoubtful
		case "tor-consumed":
			return entity.VerificationDuplicate
		case "tor-need-edit":
			return entity.VerificationNotFormatted
		}
	}

	return entity.VerificationUnknown
}

func isLoginPage(body []byte) bool {
	return bytes.Contains(body, []byte("login-form-full"))
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// encode converts s to windows-1251. Unsupported runes are replaced.
func encode(s string) (string, error) {
	out, err := encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder()).String(s)
	if err != nil {
		return "", fmt.Errorf("cannot encode %q to windows-1251: %w", s, err)
	}

	return out, nil
}
