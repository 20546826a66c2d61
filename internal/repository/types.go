package repository

// Panel family identifiers stored in the servers table.
const (
	PanelXUI       = "3x-ui"
	PanelRemnawave = "remnawave"
)

// Server is one row of the server directory. Rows are written by admin
// tooling; this application only reads them.
type Server struct {
	Name            string
	APIURL          string
	PanelType       string
	ClusterName     string
	InboundID       string
	SubscriptionURL string
}

// Key is a user's provisioned VPN credential. Exactly one row exists per
// (tg_id, email) pair and email is globally unique.
type Key struct {
	TgID          int64
	ClientID      string
	Email         string
	CreatedAt     int64 // epoch milliseconds
	ExpiryTime    int64 // epoch milliseconds
	ServerID      string // server name or cluster name, depending on mode
	PublicLink    string
	RemnawaveLink string
}

// User holds the balance and trial state backing provisioning side effects.
type User struct {
	TgID    int64
	Balance float64
	Trial   int
}

// Coupon is a one-per-user balance top-up code.
type Coupon struct {
	Code       string
	Amount     float64
	UsageLimit int
	UsageCount int
}
