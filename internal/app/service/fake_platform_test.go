package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
)

const (
	testGuild = "g1"
	botID     = "bot"
)

// fakePlatform es un guild en memoria que registra todas las llamadas salientes.
type fakePlatform struct {
	mu sync.Mutex

	roles    []domain.Role
	channels []domain.Channel
	members  []domain.Member
	invites  []domain.Invite
	webhooks map[string]domain.Webhook
	present  map[string]bool // cache de miembros
	audit    map[domain.ActionKind]*domain.AuditEntry

	banned          []string
	deletedMessages []string
	deletedWebhooks []string
	deletedInvites  []string
	createdRoles    []domain.Role
	createdChannels []domain.Channel
	overwrites      map[string][]domain.Overwrite
	permEdits       map[string]int
	logs            []string
	webhookLookups  int
	memberCtx       context.Context // ultimo ctx recibido por IsMember
	nextID          int

	rolesErr   error
	membersErr error
	permErr    map[string]error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		webhooks:   map[string]domain.Webhook{},
		present:    map[string]bool{},
		audit:      map[domain.ActionKind]*domain.AuditEntry{},
		overwrites: map[string][]domain.Overwrite{},
		permEdits:  map[string]int{},
		permErr:    map[string]error{},
	}
}

func (f *fakePlatform) SelfID() string { return botID }

func (f *fakePlatform) setAudit(kind domain.ActionKind, actorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit[kind] = &domain.AuditEntry{ActorID: actorID, ActorTag: actorID + "#0001"}
}

func (f *fakePlatform) LatestAuditEntry(_ context.Context, _ string, kind domain.ActionKind) (*domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.audit[kind]
	if e == nil {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakePlatform) Roles(context.Context, string) ([]domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return append([]domain.Role(nil), f.roles...), nil
}

func (f *fakePlatform) Channels(context.Context, string) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Channel(nil), f.channels...), nil
}

func (f *fakePlatform) Members(context.Context, string) ([]domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return append([]domain.Member(nil), f.members...), nil
}

func (f *fakePlatform) IsMember(ctx context.Context, _, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCtx = ctx
	return f.present[userID]
}

func (f *fakePlatform) Invites(context.Context, string) ([]domain.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Invite(nil), f.invites...), nil
}

func (f *fakePlatform) Webhook(_ context.Context, _, webhookID string) (*domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhookLookups++
	wh, ok := f.webhooks[webhookID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &wh, nil
}

func (f *fakePlatform) Ban(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedMessages = append(f.deletedMessages, messageID)
	return nil
}

func (f *fakePlatform) DeleteWebhook(_ context.Context, webhookID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedWebhooks = append(f.deletedWebhooks, webhookID)
	delete(f.webhooks, webhookID)
	return nil
}

func (f *fakePlatform) DeleteInvite(_ context.Context, code, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedInvites = append(f.deletedInvites, code)
	kept := f.invites[:0]
	for _, inv := range f.invites {
		if inv.Code != code {
			kept = append(kept, inv)
		}
	}
	f.invites = kept
	return nil
}

func (f *fakePlatform) CreateRole(_ context.Context, _ string, r domain.Role, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = fmt.Sprintf("new-role-%d", f.nextID)
	f.roles = append(f.roles, r)
	f.createdRoles = append(f.createdRoles, r)
	return r.ID, nil
}

func (f *fakePlatform) CreateChannel(_ context.Context, _ string, c domain.Channel, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = fmt.Sprintf("new-chan-%d", f.nextID)
	f.channels = append(f.channels, c)
	f.createdChannels = append(f.createdChannels, c)
	return c.ID, nil
}

func (f *fakePlatform) SetOverwrite(_ context.Context, channelID string, o domain.Overwrite, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overwrites[channelID] = append(f.overwrites[channelID], o)
	return nil
}

func (f *fakePlatform) SetRolePermissions(_ context.Context, _, roleID string, perms int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.permErr[roleID]; err != nil {
		return err
	}
	for i := range f.roles {
		if f.roles[i].ID == roleID {
			f.roles[i].Permissions = perms
			f.permEdits[roleID]++
			return nil
		}
	}
	return &domain.PlatformError{Op: "edit role", Status: 404, Err: fmt.Errorf("unknown role %s", roleID)}
}

func (f *fakePlatform) SendLog(_ context.Context, _, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, content)
	return nil
}

// helpers de test

func (f *fakePlatform) role(id string) (domain.Role, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Role{}, false
}

func (f *fakePlatform) removeRole(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.roles[:0]
	for _, r := range f.roles {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.roles = kept
}

func (f *fakePlatform) removeChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.channels[:0]
	for _, c := range f.channels {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.channels = kept
}

func (f *fakePlatform) bannedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.banned...)
}

func (f *fakePlatform) created() ([]domain.Role, []domain.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Role(nil), f.createdRoles...), append([]domain.Channel(nil), f.createdChannels...)
}

// seedGuild arma un guild tipico: @everyone, admin de confianza, mods, un rol integrado, miembros y canales.
func seedGuild(f *fakePlatform) {
	f.roles = []domain.Role{
		{ID: testGuild, Name: "@everyone", Permissions: 1 << 10},
		{ID: "r-admin", Name: "Server Admin", Permissions: domain.PermAdministrator},
		{ID: "r-mod", Name: "Mods", Permissions: domain.PermManageGuild | domain.PermBanMembers | 1<<10, Color: 0xff0000, Hoist: true},
		{ID: "r-helper", Name: "Helpers", Permissions: domain.PermManageMessages},
		{ID: "r-bot", Name: "GuardBot", Permissions: domain.PermAdministrator, Managed: true},
		{ID: "r-plain", Name: "Members", Permissions: 1 << 10},
	}
	f.channels = []domain.Channel{
		{ID: "cat", Name: "Community", Kind: domain.ChannelCategory},
		{ID: "c1", Name: "general", Kind: domain.ChannelText, ParentID: "cat", Topic: "hola", Overwrites: []domain.Overwrite{
			{TargetID: testGuild, TargetType: domain.OverwriteRole, Deny: 1 << 11},
			{TargetID: "r-mod", TargetType: domain.OverwriteRole, Allow: 1 << 11},
		}},
		{ID: "c2", Name: "memes", Kind: domain.ChannelText, ParentID: "cat"},
		{ID: "c3", Name: "voice", Kind: domain.ChannelVoice},
		{ID: "c4", Name: "rules", Kind: domain.ChannelText},
	}
	f.members = []domain.Member{
		{ID: "owner", RoleIDs: []string{"r-admin"}},
		{ID: "mod1", RoleIDs: []string{"r-mod", "r-plain"}},
		{ID: "user1", RoleIDs: []string{"r-plain"}},
	}
	f.invites = []domain.Invite{{Code: "abc"}, {Code: "def"}}
	f.present = map[string]bool{"owner": true, "mod1": true, "user1": true, botID: true, "goodbot": true}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() domain.Policy {
	p := domain.DefaultPolicy()
	p.RestoreRate = 1000
	p.RestoreBurst = 100
	return p
}

type recorder struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (r *recorder) Notify(_ context.Context, a domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) Append(ctx context.Context, a domain.Alert) error { return r.Notify(ctx, a) }

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.alerts {
		out = append(out, a.Kind)
	}
	return out
}

type fixture struct {
	guard    *Guard
	platform *fakePlatform
	store    *storage.MemStore
	journal  *recorder
}

func newFixture(t *testing.T, policy domain.Policy, allow ...string) *fixture {
	t.Helper()
	f := newFakePlatform()
	seedGuild(f)
	store := storage.NewMemStore(policy.Windows(), allow...)
	journal := &recorder{}
	g := NewGuard(GuardDeps{Log: discardLogger(), Platform: f, Store: store, Policy: policy, Journal: journal})
	t.Cleanup(g.Close)
	return &fixture{guard: g, platform: f, store: store, journal: journal}
}

var base = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
