package rutracker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const searchPage = `<html><body>
<table id="tor-tbl">
<tr class="hl-tr">
  <td class="t-ico"><span class="tor-icon tor-approved">&radic;</span></td>
  <td><a class="tLink" data-topic_id="101" href="viewtopic.php?t=101">Фильм (2020) BDRip</a></td>
  <td class="tor-size" data-ts_text="1073741824">1 GB</td>
  <td><b class="seedmed">42</b></td>
</tr>
<tr class="hl-tr">
  <td class="t-ico"><span class="tor-icon tor-dup">#</span></td>
  <td><a class="tLink" data-topic_id="102" href="viewtopic.php?t=102">Another</a></td>
  <td class="tor-size" data-ts_text="2048">2 KB</td>
  <td></td>
</tr>
<tr class="hl-tr">
  <td><a class="tLink" href="viewtopic.php">broken row</a></td>
</tr>
</table>
</body></html>`

type tracker struct {
	logins   atomic.Int32
	expired  atomic.Bool
	lastTerm atomic.Value
}

func (tr *tracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authorized := func() bool {
		ck, err := r.Cookie(sessionCookie)

		return err == nil && ck.Value == "s1" && !tr.expired.Load()
	}

	switch r.URL.Path {
	case "/forum/login.php":
		_ = r.ParseForm()
		user, _ := charmap.Windows1251.NewDecoder().String(r.PostForm.Get("login_username"))
		if user != "user" || r.PostForm.Get("login_password") != "pass" {
			w.WriteHeader(http.StatusOK)

			return
		}
		tr.logins.Add(1)
		tr.expired.Store(false)
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "s1", Path: "/"})
	case "/forum/tracker.php":
		if !authorized() {
			_, _ = io.WriteString(w, `<form id="login-form-full"></form>`)

			return
		}
		term, _ := charmap.Windows1251.NewDecoder().String(r.URL.Query().Get("nm"))
		tr.lastTerm.Store(term)
		page, _ := charmap.Windows1251.NewEncoder().String(searchPage)
		_, _ = io.WriteString(w, page)
	case "/forum/dl.php":
		if !authorized() {
			_, _ = io.WriteString(w, `<html><form id="login-form-full"></form></html>`)

			return
		}
		if r.URL.Query().Get("t") != "101" {
			_, _ = io.WriteString(w, `<html>no such topic</html>`)

			return
		}
		_, _ = io.WriteString(w, "d8:announce3:urle")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, login string) (*Client, *tracker) {
	t.Helper()

	tr := &tracker{}
	ts := httptest.NewServer(tr)
	t.Cleanup(ts.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(Config{BaseURL: ts.URL + "/forum", Login: login, Password: "pass"}, &http.Client{}, log)
	require.NoError(t, err)

	return c, tr
}

func TestSearch(t *testing.T) {
	c, tr := newTestClient(t, "user")

	results, err := c.Search(context.Background(), "фильм")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "фильм", tr.lastTerm.Load())
	assert.Equal(t, entity.SearchResult{
		TopicID:      101,
		Title:        "Фильм (2020) BDRip",
		TopicURL:     c.TopicURL(101),
		Size:         1073741824,
		Seeds:        42,
		Verification: entity.VerificationApproved,
	}, results[0])
	assert.Equal(t, int64(102), results[1].TopicID)
	assert.Equal(t, 0, results[1].Seeds)
	assert.Equal(t, entity.VerificationDoubtful, results[1].Verification)

	_, err = c.Search(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.logins.Load())
}

func TestSearchRelogin(t *testing.T) {
	c, tr := newTestClient(t, "user")

	_, err := c.Search(context.Background(), "one")
	require.NoError(t, err)

	tr.expired.Store(true)

	results, err := c.Search(context.Background(), "two")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), tr.logins.Load())
}

func TestLoginFailed(t *testing.T) {
	c, _ := newTestClient(t, "stranger")

	_, err := c.Search(context.Background(), "one")
	require.ErrorIs(t, err, common.ErrTrackerLogin)

	c, _ = newTestClient(t, "")
	_, err = c.TorrentFile(context.Background(), 101)
	require.ErrorIs(t, err, common.ErrTrackerLogin)
}

func TestTorrentFile(t *testing.T) {
	c, _ := newTestClient(t, "user")

	data, err := c.TorrentFile(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, "d8:announce3:urle", string(data))

	_, err = c.TorrentFile(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrTrackerLogin)
}

func TestTopicURL(t *testing.T) {
	c, err := NewClient(Config{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, "https://rutracker.org/forum/viewtopic.php?t=7", c.TopicURL(7))
}

func TestParseVerification(t *testing.T) {
	assert.Equal(t, entity.VerificationApproved, parseVerification("tor-icon tor-approved"))
	assert.Equal(t, entity.VerificationDuplicate, parseVerification("tor-icon tor-consumed"))
	assert.Equal(t, entity.VerificationNotFormatted, parseVerification("tor-need-edit"))
	assert.Equal(t, entity.VerificationUnknown, parseVerification("tor-icon tor-not-approved"))
}
