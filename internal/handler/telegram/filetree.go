package telegram

import (
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/jgivc/transmissionbot/internal/entity"
)

type fileNode struct {
	icon      string
	primary   string
	secondary string
	link      string
}

// parseFiles groups consecutive files by directory. Complete files that fit
// into a message get a /file link. Indexes are positions in files.
func parseFiles(files []entity.TorrentFile, torrentID int64, maxSize int64) []fileNode {
	nodes := make([]fileNode, 0, len(files))
	currentDir := ""

	for i, f := range files {
		dir := path.Dir(f.Name)
		if dir != currentDir {
			nodes = append(nodes, fileNode{icon: "📂", primary: dir + "/:"})
			currentDir = dir
		}

		node := fileNode{
			icon:      "📄",
			primary:   path.Base(f.Name),
			secondary: formatSize(f.Length),
		}
		if f.Downloaded() && f.Length <= maxSize {
			node.link = fmt.Sprintf("/file%d_%d", torrentID, i)
		}

		nodes = append(nodes, node)
	}

	return nodes
}

func renderNodes(nodes []fileNode) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		var lines []string
		if n.link != "" {
			lines = append(lines, n.link)
		}
		if n.primary != "" {
			text := html.EscapeString(n.primary)
			if n.icon != "" {
				text = n.icon + " " + text
			}
			lines = append(lines, "<pre>"+text+"</pre>")
		}
		if n.secondary != "" {
			lines = append(lines, "<i>"+n.secondary+"</i>")
		}

		parts = append(parts, strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

// renderFiles renders up to limit files, the rest is reported as skipped.
func renderFiles(torrentID int64, files []entity.TorrentFile, limit int, maxSize int64) string {
	skipped := ""
	if len(files) > limit {
		skipped = fmt.Sprintf("\n\n<b>%d files were skipped</b>", len(files)-limit)
		files = files[:limit]
	}

	return renderNodes(parseFiles(files, torrentID, maxSize)) + skipped
}
