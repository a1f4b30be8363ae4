package entity

// SearchResult is a single topic found on the torrent index.
type SearchResult struct {
	TopicID  int64  `json:"topicId"`
	Title    string `json:"title"`
	TopicURL string `json:"topicUrl"`
	Size     int64  `json:"size"`
	Seeds    int    `json:"seeds"`
	// Verification is the tracker moderation mark of the topic.
	Verification Verification `json:"verification"`
}

type Verification string

const (
	VerificationApproved     Verification = "approved"
	VerificationDoubtful     Verification = "doubtful"
	VerificationDuplicate    Verification = "duplicate"
	VerificationNotFormatted Verification = "not_formatted"
	VerificationUnknown      Verification = ""
)

// RankedSearchResult is a search result with a rank, positive is better.
type RankedSearchResult struct {
	SearchResult
	Rank int
}
