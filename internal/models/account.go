package models

// AccountStatus is the remote-side status of a mail account.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountLocked AccountStatus = "locked"
)

// RemoteAccount is the mail-server-side representation of a principal.
// It is never cached beyond one synchronization pass.
type RemoteAccount struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Aliases []string          `json:"aliases,omitempty"`
	Status  AccountStatus     `json:"status"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}
