// Package panel talks to remote VPN panel management APIs. Two families
// are supported: XUI-style panels and Remnawave. Callers select the
// implementation once per directory row through the Factory instead of
// branching on the panel type string at every call site.
package panel

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

var (
	// ErrAuthFailed indicates the panel rejected the admin credentials.
	ErrAuthFailed = errors.New("panel: authentication failed")
	// ErrCreateFailed indicates the panel accepted the call but did not
	// return a usable client entry.
	ErrCreateFailed = errors.New("panel: client creation failed")
	// ErrUnsupportedPanel indicates an unknown panel_type in the directory.
	ErrUnsupportedPanel = errors.New("panel: unsupported panel type")
)

// Credentials are process-wide admin credentials, shared by every server
// of the matching panel family.
type Credentials struct {
	XUIUsername       string
	XUIPassword       string
	RemnawaveLogin    string
	RemnawavePassword string
}

// CreateParams describes one credential to create on a panel inbound.
type CreateParams struct {
	OwnerID   int64
	Email     string
	ClientID  string
	ExpiryMs  int64
	InboundID string
}

// CreateResult is what the panel returned for a successful creation. XUI
// panels echo the caller-chosen ClientID; Remnawave issues its own and
// hands back a ready-to-use subscription URL.
type CreateResult struct {
	ClientID        string
	SubscriptionURL string
}

// Client is the management API of one remote VPN panel.
type Client interface {
	Login(ctx context.Context) error
	CreateClient(ctx context.Context, params CreateParams) (*CreateResult, error)
	DeleteClient(ctx context.Context, inboundID, email, clientID string) error
}

// Factory builds Clients for directory rows.
type Factory struct {
	creds      Credentials
	httpClient *http.Client
}

// NewFactory constructs a Factory. The timeout caps every panel request;
// probe paths shorten it further via context deadlines.
func NewFactory(creds Credentials, timeout time.Duration) *Factory {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Factory{
		creds: creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ClientFor returns a Client for the server's panel family.
func (f *Factory) ClientFor(server *repository.Server) (Client, error) {
	switch server.PanelType {
	case repository.PanelRemnawave:
		return newRemnawaveClient(server.APIURL, f.creds.RemnawaveLogin, f.creds.RemnawavePassword, f.httpClient), nil
	case repository.PanelXUI, "":
		return newXUIClient(server.APIURL, f.creds.XUIUsername, f.creds.XUIPassword, f.httpClient), nil
	default:
		return nil, ErrUnsupportedPanel
	}
}
