package entity

// Tunnel is the state of the public tunnel to the daemon web UI.
type Tunnel struct {
	IsRunning bool   `json:"isRunning"`
	URL       string `json:"url"`
}

// Info is the aggregated state shown by the /info command.
type Info struct {
	Session SessionInfo
	Tunnel  Tunnel
}
