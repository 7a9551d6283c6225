package service

import (
	"context"
	"testing"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNukeEscalatesExactlyAtThreshold(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform

	_, err := fx.guard.Backup(ctx, testGuild)
	require.NoError(err)

	p.setAudit(domain.ActionChannelDelete, "attacker")
	want := []domain.Decision{domain.DecisionWarn, domain.DecisionWarn, domain.DecisionEscalate}
	for i, id := range []string{"c1", "c2", "c3"} {
		p.removeChannel(id)
		v, err := fx.guard.Threats.OnChannelDelete(ctx, domain.ChannelDeleteEvent{GuildID: testGuild, ChannelID: id, At: base.Add(time.Duration(i) * time.Second)})
		require.NoError(err)
		assert.Equal(i+1, v.Count)
		assert.Equal(3, v.Threshold)
		assert.Equal(want[i], v.Decision, "event %d", i+1)
		assert.Equal("attacker", v.ActorID)
	}

	assert.Equal([]string{"attacker"}, p.bannedIDs())
	st, ok := fx.guard.Lockdown.State(testGuild)
	require.True(ok)
	assert.Contains(st.Reason, "attacker")

	_, chans := p.created()
	require.Len(chans, 3)
	names := map[string]domain.Channel{}
	for _, c := range chans {
		names[c.Name] = c
	}
	assert.Equal("cat", names["general"].ParentID)
	assert.Equal("hola", names["general"].Topic)
	assert.Equal(domain.ChannelVoice, names["voice"].Kind)
	assert.Len(p.overwrites[names["general"].ID], 2)

	// cuarto borrado (ya en vuelo): ban de nuevo, mismo lockdown, y se recrea
	p.removeChannel("c4")
	v, err := fx.guard.Threats.OnChannelDelete(ctx, domain.ChannelDeleteEvent{GuildID: testGuild, ChannelID: "c4", At: base.Add(4 * time.Second)})
	require.NoError(err)
	assert.Equal(domain.DecisionBan, v.Decision)
	assert.Equal(4, v.Count)
	assert.Equal([]string{"attacker", "attacker"}, p.bannedIDs())
	again, ok := fx.guard.Lockdown.State(testGuild)
	require.True(ok)
	assert.Equal(st.ID, again.ID)
	_, chans = p.created()
	require.Len(chans, 4)
	assert.Equal("rules", chans[3].Name)

	assert.Equal([]string{"channel_delete", "channel_delete", "lockdown_enabled", "channel_delete", "restore", "restore"}, fx.journal.kinds())
}

func TestRoleNukeRestoresRoles(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform

	_, err := fx.guard.Backup(ctx, testGuild)
	require.NoError(err)

	p.setAudit(domain.ActionRoleDelete, "attacker")
	p.removeRole("r-mod")
	v, err := fx.guard.Threats.OnRoleDelete(ctx, domain.RoleDeleteEvent{GuildID: testGuild, RoleID: "r-mod"})
	require.NoError(err)
	assert.Equal(domain.DecisionWarn, v.Decision)

	p.removeRole("r-admin")
	v, err = fx.guard.Threats.OnRoleDelete(ctx, domain.RoleDeleteEvent{GuildID: testGuild, RoleID: "r-admin"})
	require.NoError(err)
	assert.Equal(domain.DecisionEscalate, v.Decision)

	roles, chans := p.created()
	assert.Empty(chans)
	require.Len(roles, 2)
	assert.True(fx.guard.Lockdown.Active(testGuild))
}

func TestMassBanEscalatesWithoutRestore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform

	_, err := fx.guard.Backup(ctx, testGuild)
	require.NoError(err)

	p.setAudit(domain.ActionMemberBan, "rogue-mod")
	for i := 1; i <= 5; i++ {
		v, err := fx.guard.Threats.OnBanAdd(ctx, domain.BanAddEvent{GuildID: testGuild, UserID: "victim", At: base.Add(time.Duration(i) * time.Second)})
		require.NoError(err)
		assert.Equal(i, v.Count)
		assert.Equal(5, v.Threshold)
		if i < 5 {
			assert.Equal(domain.DecisionWarn, v.Decision, "event %d", i)
			assert.False(fx.guard.Lockdown.Active(testGuild))
		} else {
			assert.Equal(domain.DecisionEscalate, v.Decision)
		}
	}

	assert.Equal([]string{"rogue-mod"}, p.bannedIDs())
	assert.True(fx.guard.Lockdown.Active(testGuild))
	roles, chans := p.created()
	assert.Empty(roles)
	assert.Empty(chans)
	assert.NotContains(fx.journal.kinds(), "restore")
}

func TestDestructiveUnattributableIsIgnored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	for i := 0; i < 5; i++ {
		v, err := fx.guard.Threats.OnBanAdd(ctx, domain.BanAddEvent{GuildID: testGuild, UserID: "victim"})
		assert.NoError(err)
		assert.Equal(domain.DecisionUnattributable, v.Decision)
	}
	assert.Equal(0, fx.store.Counters.Len())
	assert.Empty(fx.platform.bannedIDs())
	assert.False(fx.guard.Lockdown.Active(testGuild))
}

func TestAllowListedActorNeverPunished(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy(), "trusted")
	p := fx.platform

	p.setAudit(domain.ActionMemberBan, "trusted")
	for i := 0; i < 10; i++ {
		v, err := fx.guard.Threats.OnBanAdd(ctx, domain.BanAddEvent{GuildID: testGuild, UserID: "someone"})
		assert.NoError(err)
		assert.Equal(domain.DecisionExempt, v.Decision)
	}
	for i := 0; i < 30; i++ {
		v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m", AuthorID: "trusted"})
		assert.NoError(err)
		assert.Equal(domain.DecisionExempt, v.Decision)
	}
	v, err := fx.guard.Threats.OnMemberAdd(ctx, domain.MemberAddEvent{GuildID: testGuild, Member: domain.Member{ID: "trusted", Bot: true}})
	assert.NoError(err)
	assert.Equal(domain.DecisionExempt, v.Decision)

	assert.Empty(p.bannedIDs())
	assert.Empty(p.deletedMessages)
	assert.False(fx.guard.Lockdown.Active(testGuild))
	assert.Equal(0, fx.store.Counters.Len())
}

func TestBotOwnActionsAreExempt(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	fx.platform.setAudit(domain.ActionMemberBan, botID)
	for i := 0; i < 6; i++ {
		v, err := fx.guard.Threats.OnBanAdd(ctx, domain.BanAddEvent{GuildID: testGuild, UserID: "spammer"})
		assert.NoError(err)
		assert.Equal(domain.DecisionExempt, v.Decision)
	}
	assert.False(fx.guard.Lockdown.Active(testGuild))
}

func TestMessageSpamBansAboveLimit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	for i := 1; i <= 10; i++ {
		v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m", AuthorID: "user1", At: base.Add(time.Duration(i) * time.Second)})
		assert.NoError(err)
		assert.Equal(domain.DecisionNone, v.Decision)
		assert.Equal(i, v.Count)
	}
	v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m", AuthorID: "user1", At: base.Add(11 * time.Second)})
	assert.NoError(err)
	assert.Equal(domain.DecisionBan, v.Decision)
	assert.Equal(11, v.Count)
	assert.Equal([]string{"user1"}, fx.platform.bannedIDs())
	assert.False(fx.guard.Lockdown.Active(testGuild))

	// sin auto-ban solo se cuenta
	p := testPolicy()
	p.AutoBan = false
	fx = newFixture(t, p)
	for i := 1; i <= 20; i++ {
		v, _ = fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m", AuthorID: "user1", At: base})
	}
	assert.Equal(domain.DecisionNone, v.Decision)
	assert.Empty(fx.platform.bannedIDs())
}

func TestMessagesSpacedBeyondWindowNeverBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	at := base
	for i := 0; i < 50; i++ {
		v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m", AuthorID: "user1", At: at})
		assert.NoError(err)
		assert.Equal(1, v.Count)
		at = at.Add(61 * time.Second)
	}
	assert.Empty(fx.platform.bannedIDs())
}

func TestPhantomBotMessageDeleted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m1", AuthorID: "ghost", AuthorBot: true})
	assert.NoError(err)
	assert.Equal(domain.DecisionDeleteMessage, v.Decision)
	assert.Equal([]string{"m1"}, fx.platform.deletedMessages)
	assert.Equal(0, fx.store.Counters.Len())

	v, err = fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m2", AuthorID: "goodbot", AuthorBot: true})
	assert.NoError(err)
	assert.Equal(domain.DecisionNone, v.Decision)
	assert.Len(fx.platform.deletedMessages, 1)
	assert.Empty(fx.platform.bannedIDs())
}

type traceKey struct{}

func TestPhantomBotLookupUsesEventContext(t *testing.T) {
	fx := newFixture(t, testPolicy())
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), traceKey{}, "ev-1"))
	defer cancel()

	_, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m1", AuthorID: "ghost", AuthorBot: true})
	require.NoError(t, err)

	got := fx.platform.memberCtx
	require.NotNil(t, got)
	assert.Equal(t, "ev-1", got.Value(traceKey{}))
	// cancelar el evento corta tambien la consulta del miembro
	cancel()
	assert.ErrorIs(t, got.Err(), context.Canceled)
}

func TestDirectMessagesIgnored(t *testing.T) {
	fx := newFixture(t, testPolicy())
	v, err := fx.guard.Threats.OnMessage(context.Background(), domain.MessageEvent{AuthorID: "ghost", AuthorBot: true})
	assert.NoError(t, err)
	assert.Equal(t, domain.DecisionNone, v.Decision)
}

func TestUnauthorizedBotJoinBanned(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	v, err := fx.guard.Threats.OnMemberAdd(ctx, domain.MemberAddEvent{GuildID: testGuild, Member: domain.Member{ID: "evilbot", Bot: true}})
	assert.NoError(err)
	assert.Equal(domain.DecisionBan, v.Decision)

	v, err = fx.guard.Threats.OnMemberAdd(ctx, domain.MemberAddEvent{GuildID: testGuild, Member: domain.Member{ID: "human"}})
	assert.NoError(err)
	assert.Equal(domain.DecisionNone, v.Decision)
	assert.Equal([]string{"evilbot"}, fx.platform.bannedIDs())
}

func TestSuspiciousWebhookDeleted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy(), "owner")
	p := fx.platform
	p.webhooks["wh-bad"] = domain.Webhook{ID: "wh-bad", ChannelID: "c1", Name: "free nitro", OwnerID: "intruder"}
	p.webhooks["wh-ok"] = domain.Webhook{ID: "wh-ok", ChannelID: "c1", Name: "github", OwnerID: "owner"}

	v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m1", AuthorID: "wh-ok", WebhookID: "wh-ok", AuthorBot: true})
	assert.NoError(err)
	assert.Equal(domain.DecisionExempt, v.Decision)
	v, err = fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m2", AuthorID: "wh-ok", WebhookID: "wh-ok", AuthorBot: true})
	assert.NoError(err)
	assert.Equal(domain.DecisionExempt, v.Decision)
	assert.Equal(1, p.webhookLookups)

	v, err = fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m3", AuthorID: "wh-bad", WebhookID: "wh-bad", AuthorBot: true})
	assert.NoError(err)
	assert.Equal(domain.DecisionDeleteWebhook, v.Decision)
	assert.Equal("intruder", v.ActorID)
	assert.Equal([]string{"wh-bad"}, p.deletedWebhooks)
	assert.Empty(p.deletedMessages)

	// borrado: ya no esta en cache ni en la plataforma
	v, err = fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m4", AuthorID: "wh-bad", WebhookID: "wh-bad", AuthorBot: true})
	assert.NoError(err)
	assert.Equal(domain.DecisionNone, v.Decision)
	assert.Equal(3, p.webhookLookups)
}

func TestLockdownDeletesNonExemptMessages(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy(), "owner")

	_, _, err := fx.guard.EnableLockdown(ctx, testGuild, "test")
	require.NoError(err)

	v, err := fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m1", AuthorID: "user1"})
	assert.NoError(err)
	assert.Equal(domain.DecisionDeleteMessage, v.Decision)

	v, err = fx.guard.Threats.OnMessage(ctx, domain.MessageEvent{GuildID: testGuild, ChannelID: "c1", MessageID: "m2", AuthorID: "owner"})
	assert.NoError(err)
	assert.Equal(domain.DecisionExempt, v.Decision)
	assert.Equal([]string{"m1"}, fx.platform.deletedMessages)
}
