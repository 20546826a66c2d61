package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/keyhub-dev/keyhub/internal/notifier"
	"github.com/keyhub-dev/keyhub/internal/panel"
	"github.com/keyhub-dev/keyhub/internal/repository"
)

// xuiCreateSlots caps concurrent XUI credential creations. XUI panels
// throttle aggressively, so bulk provisioning runs at most two in flight.
const xuiCreateSlots = 2

const emailAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ProvisionService creates and migrates credentials on panel servers.
// Panel calls happen first and persistence last, so a failed attempt never
// leaves a half-written key row.
type ProvisionService struct {
	keys     repository.KeyRepository
	servers  repository.ServerRepository
	users    repository.UserRepository
	factory  *panel.Factory
	linkBase string
	logger   *slog.Logger

	alerts    notifier.Service
	alertChat int64

	xuiSlots chan struct{}
	now      func() time.Time
}

// NewProvisionService assembles the provisioner.
func NewProvisionService(keys repository.KeyRepository, servers repository.ServerRepository, users repository.UserRepository, factory *panel.Factory, linkBase string, logger *slog.Logger) *ProvisionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisionService{
		keys:     keys,
		servers:  servers,
		users:    users,
		factory:  factory,
		linkBase: linkBase,
		logger:   logger,
		xuiSlots: make(chan struct{}, xuiCreateSlots),
		now:      time.Now,
	}
}

// SetAlertChannel routes panel failure alerts to a chat. Alerts are
// best-effort and never change the operation's outcome.
func (s *ProvisionService) SetAlertChannel(notify notifier.Service, chatID int64) {
	s.alerts = notify
	s.alertChat = chatID
}

func (s *ProvisionService) alert(ctx context.Context, text string) {
	if s.alerts == nil || s.alertChat == 0 {
		return
	}
	if err := s.alerts.Send(ctx, notifier.Message{ChatID: s.alertChat, Text: text}); err != nil {
		s.logger.Warn("failure alert not delivered", "error", err)
	}
}

// IssueParams describes one credential issuance.
type IssueParams struct {
	TgID       int64
	ServerName string
	ExpiryTime time.Time
	// Email names the credential; empty means generate a fresh unique slug.
	Email string
	// Trial marks the user's trial as used after a successful issue.
	Trial bool
	// PlanPrice, when positive, is debited from the user's balance after a
	// successful issue.
	PlanPrice float64
}

// IssueResult is handed back to the caller for display.
type IssueResult struct {
	Email string
	Link  string
}

// Issue creates a credential on the named server and persists the key row.
// Side effects (trial flag, balance debit) run only on this path, never on
// migration.
func (s *ProvisionService) Issue(ctx context.Context, params IssueParams) (*IssueResult, error) {
	if err := s.users.Ensure(ctx, params.TgID); err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", params.TgID, err)
	}

	email := params.Email
	if email == "" {
		generated, err := s.generateEmail(ctx)
		if err != nil {
			return nil, err
		}
		email = generated
	}

	key := &repository.Key{
		TgID:       params.TgID,
		ClientID:   uuid.NewString(),
		Email:      email,
		CreatedAt:  s.now().UnixMilli(),
		ExpiryTime: params.ExpiryTime.UnixMilli(),
		ServerID:   params.ServerName,
	}

	if err := s.createOnServer(ctx, key, params.ServerName); err != nil {
		s.logger.Error("key issuance failed", "tg_id", params.TgID, "server", params.ServerName, "error", err)
		s.alert(ctx, fmt.Sprintf("Key issuance for user %d failed on %s: %v", params.TgID, params.ServerName, err))
		return nil, err
	}

	if err := s.keys.Insert(ctx, key); err != nil {
		s.logger.Error("key persistence failed", "tg_id", params.TgID, "email", email, "error", err)
		return nil, fmt.Errorf("%w: persist key: %v", ErrProvisionFailed, err)
	}

	if params.Trial {
		if user, err := s.users.Find(ctx, params.TgID); err == nil && user.Trial <= 0 {
			if err := s.users.SetTrial(ctx, params.TgID, 1); err != nil {
				s.logger.Warn("trial flag update failed", "tg_id", params.TgID, "error", err)
			}
		}
	}
	if params.PlanPrice > 0 {
		if err := s.users.AdjustBalance(ctx, params.TgID, -params.PlanPrice); err != nil {
			s.logger.Warn("balance debit failed", "tg_id", params.TgID, "price", params.PlanPrice, "error", err)
		}
	}

	s.logger.Info("key issued", "tg_id", params.TgID, "email", email, "server", params.ServerName)
	return &IssueResult{Email: email, Link: keyLink(key)}, nil
}

// Migrate moves an existing key to another server. The row is updated in
// place: only the server reference and client id change, so exactly one
// row per email exists before and after.
func (s *ProvisionService) Migrate(ctx context.Context, email, newServer string) (*IssueResult, error) {
	key, err := s.keys.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	target, err := s.servers.FindByName(ctx, newServer)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: server %s", ErrNotFound, newServer)
		}
		return nil, err
	}

	// Best-effort cleanup on the old server. A stale or unreachable old
	// server must not block the migration.
	if target.PanelType != repository.PanelRemnawave {
		s.deleteOldClient(ctx, key)
	}

	moved := &repository.Key{
		TgID:       key.TgID,
		ClientID:   key.ClientID,
		Email:      key.Email,
		CreatedAt:  key.CreatedAt,
		ExpiryTime: key.ExpiryTime,
		ServerID:   newServer,
	}
	if err := s.createOnServer(ctx, moved, newServer); err != nil {
		s.logger.Error("key migration failed", "tg_id", key.TgID, "email", email, "server", newServer, "error", err)
		s.alert(ctx, fmt.Sprintf("Migration of %s to %s failed: %v", email, newServer, err))
		return nil, err
	}

	if err := s.keys.Reassign(ctx, key.TgID, key.Email, newServer, moved.ClientID); err != nil {
		s.logger.Error("key reassignment failed", "tg_id", key.TgID, "email", email, "error", err)
		return nil, fmt.Errorf("%w: reassign key: %v", ErrProvisionFailed, err)
	}

	s.logger.Info("key migrated", "tg_id", key.TgID, "email", email, "from", key.ServerID, "to", newServer)
	return &IssueResult{Email: email, Link: keyLink(moved)}, nil
}

// createOnServer provisions key's credential on the named server, filling
// in the panel-issued link (and, for Remnawave, the panel-issued id).
func (s *ProvisionService) createOnServer(ctx context.Context, key *repository.Key, serverName string) error {
	server, err := s.servers.FindByName(ctx, serverName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: server %s", ErrNotFound, serverName)
		}
		return err
	}
	client, err := s.factory.ClientFor(server)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}

	params := panel.CreateParams{
		OwnerID:   key.TgID,
		Email:     key.Email,
		ClientID:  key.ClientID,
		ExpiryMs:  key.ExpiryTime,
		InboundID: server.InboundID,
	}

	switch server.PanelType {
	case repository.PanelRemnawave:
		result, err := client.CreateClient(ctx, params)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
		}
		key.ClientID = result.ClientID
		key.RemnawaveLink = result.SubscriptionURL
		key.PublicLink = ""
	default:
		s.xuiSlots <- struct{}{}
		_, err := client.CreateClient(ctx, params)
		<-s.xuiSlots
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
		}
		key.PublicLink = fmt.Sprintf("%s%s/%d", s.linkBase, key.Email, key.TgID)
		key.RemnawaveLink = ""
	}
	return nil
}

// deleteOldClient removes the credential from the key's current server.
// Failures are logged and swallowed.
func (s *ProvisionService) deleteOldClient(ctx context.Context, key *repository.Key) {
	old, err := s.servers.FindByName(ctx, key.ServerID)
	if err != nil {
		s.logger.Warn("old server lookup failed", "server", key.ServerID, "email", key.Email, "error", err)
		return
	}
	client, err := s.factory.ClientFor(old)
	if err != nil {
		s.logger.Warn("old server client unavailable", "server", old.Name, "error", err)
		return
	}
	if err := client.DeleteClient(ctx, old.InboundID, key.Email, key.ClientID); err != nil {
		s.logger.Warn("old client cleanup failed", "server", old.Name, "email", key.Email, "error", err)
		return
	}
	s.logger.Info("old client removed", "server", old.Name, "email", key.Email)
}

// generateEmail produces a fresh unique slug usable as a panel username.
func (s *ProvisionService) generateEmail(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		buf := make([]byte, 8)
		for i := range buf {
			buf[i] = emailAlphabet[rand.Intn(len(emailAlphabet))]
		}
		email := string(buf)
		if _, err := s.keys.FindByEmail(ctx, email); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return email, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique email", ErrProvisionFailed)
}

func keyLink(key *repository.Key) string {
	if key.PublicLink != "" {
		return key.PublicLink
	}
	return key.RemnawaveLink
}
