package keys

import "strings"

const (
	DefaultPrefix = "TelegramTransmissionBot"

	KeyWaitList            = "WaitList"                   // HASH. torrent_id: chat_id
	KeyReferenceList       = "ReferenceList"              // STRING. JSON array of torrent ids from the last listing
	KeySearchResultsPrefix = "RutrackerSearchResultsList" // STRING with TTL. <prefix>:<token> -> JSON array of search results

	KeySeparator = ":"
)

// Key joins key parts with the separator.
func Key(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}
