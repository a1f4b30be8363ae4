package telegram

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgivc/transmissionbot/internal/entity"
)

const progressCells = 10

var statusIcons = map[entity.TorrentStatus]string{
	entity.StatusStopped:        "🚫",
	entity.StatusCheckQueued:    "❓",
	entity.StatusChecking:       "❓",
	entity.StatusDownloadQueued: "⬇️",
	entity.StatusDownloading:    "⬇️",
	entity.StatusSeedQueued:     "⬆️",
	entity.StatusSeeding:        "⬆️",
	entity.StatusCantFindPeers:  "😞",
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}

	return humanize.IBytes(uint64(n))
}

func renderStatus(s entity.TorrentStatus) string {
	icon, ok := statusIcons[s]
	if !ok {
		icon = "🤷‍♂️"
	}

	return icon + " " + s.String()
}

func humanizeDuration(d time.Duration) string {
	now := time.Now()

	return strings.TrimSpace(humanize.RelTime(now, now.Add(d), "", ""))
}

// renderProgress draws a bar like "██░░░░░░░░ 20%". Complete torrents get nothing.
func renderProgress(t *entity.Torrent) string {
	if t.PercentDone >= 1 {
		return ""
	}

	filled := min(max(int(math.Round(t.PercentDone*progressCells)), 0), progressCells)
	eta := "unknown"
	if t.ETAKnown() {
		eta = humanizeDuration(t.ETA)
	}

	return fmt.Sprintf("%s%s %d%%\nRemaining time: %s\n",
		strings.Repeat("█", filled),
		strings.Repeat("░", progressCells-filled),
		int(math.Round(t.PercentDone*100)),
		eta,
	)
}

func renderTorrent(t *entity.Torrent) string {
	return fmt.Sprintf("\n/torrent%d\n%s %s\n%s  %s", t.ID, renderStatus(t.Status), formatSize(t.SizeWhenDone), renderProgress(t), t.Name)
}

func renderTorrentList(torrents []*entity.Torrent, limit int) string {
	lines := make([]string, 0, len(torrents))
	for _, t := range torrents {
		lines = append(lines, renderTorrent(t))
	}

	return fmt.Sprintf("Recent torrents (up to %d):\n%s", limit, strings.Join(lines, "\n"))
}

func renderRank(rank int) string {
	switch {
	case rank < 0:
		return strings.Repeat("😥", -rank)
	case rank > 0:
		return strings.Repeat("😁", rank)
	default:
		return ""
	}
}

func renderSearchResult(r entity.RankedSearchResult) string {
	return strings.Join([]string{
		strings.TrimSpace(renderRank(r.Rank) + " " + html.EscapeString(r.Title)),
		fmt.Sprintf(`<a href="%s">View</a>`, html.EscapeString(r.TopicURL)),
		fmt.Sprintf("Seeds: <b>%d</b>", r.Seeds),
		fmt.Sprintf("<i>%s</i>", formatSize(r.Size)),
		fmt.Sprintf("⬇️ Download: /topic%d", r.TopicID),
	}, "\n")
}

func renderSearchResults(results []entity.RankedSearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, renderSearchResult(r))
	}

	return strings.Join(parts, "\n\n")
}

func renderInfo(info *entity.Info) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Transmission %s\n", info.Session.Version)
	fmt.Fprintf(&sb, "Download directory: %s\n", info.Session.DownloadDir)
	fmt.Fprintf(&sb, "Free space: %s\n\n", formatSize(info.Session.FreeSpaceBytes))

	if info.Tunnel.IsRunning {
		fmt.Fprintf(&sb, "Tunnel is up\nUrl: %s, stop: /untunnel", info.Tunnel.URL)
	} else {
		sb.WriteString("Tunnel is down\nstart: /tunnel")
	}

	return sb.String()
}
