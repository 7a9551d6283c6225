package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permsOf(t *testing.T, p *fakePlatform) map[string]int64 {
	t.Helper()
	roles, err := p.Roles(context.Background(), testGuild)
	require.NoError(t, err)
	out := map[string]int64{}
	for _, r := range roles {
		out[r.ID] = r.Permissions
	}
	return out
}

func TestLockdownRoundTripRestoresEveryBitset(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform

	n, err := fx.guard.Lockdown.SeedTrust(ctx, testGuild)
	require.NoError(err)
	assert.Equal(1, n)

	before := permsOf(t, p)
	st, rep, err := fx.guard.EnableLockdown(ctx, testGuild, "raid")
	require.NoError(err)
	assert.NoError(rep.Err())
	assert.True(st.Active)
	assert.NotEmpty(st.ID)
	assert.Equal(map[string]int64{"r-mod": before["r-mod"], "r-helper": before["r-helper"]}, st.SavedPermissions)

	during := permsOf(t, p)
	assert.Equal(int64(1<<10), during["r-mod"])
	assert.Equal(int64(0), during["r-helper"])
	assert.Equal(before[testGuild], during[testGuild])
	assert.Equal(before["r-admin"], during["r-admin"])
	assert.Equal(before["r-bot"], during["r-bot"])
	assert.Equal(before["r-plain"], during["r-plain"])
	assert.Zero(p.permEdits["r-plain"])
	assert.ElementsMatch([]string{"abc", "def"}, p.deletedInvites)

	rep, err = fx.guard.DisableLockdown(ctx, testGuild, "manual")
	require.NoError(err)
	assert.NoError(rep.Err())
	assert.Equal(2, rep.Succeeded())
	assert.Equal(before, permsOf(t, p))
	assert.False(fx.guard.Lockdown.Active(testGuild))
}

func TestLockdownReEnableIsNoop(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform

	first, _, err := fx.guard.EnableLockdown(ctx, testGuild, "one")
	require.NoError(err)
	edits := p.permEdits["r-mod"]

	second, rep, err := fx.guard.EnableLockdown(ctx, testGuild, "two")
	assert.ErrorIs(err, domain.ErrLockdownActive)
	assert.Empty(rep.Outcomes)
	assert.Equal(first.ID, second.ID)
	assert.Equal("one", second.Reason)
	assert.Equal(edits, p.permEdits["r-mod"])

	// el segundo enable no pisa los permisos originales guardados
	_, err = fx.guard.DisableLockdown(ctx, testGuild, "done")
	require.NoError(err)
	assert.Equal(domain.PermManageGuild|domain.PermBanMembers|1<<10, permsOf(t, p)["r-mod"])
}

func TestLockdownDisableWhenNormal(t *testing.T) {
	fx := newFixture(t, testPolicy())
	_, err := fx.guard.DisableLockdown(context.Background(), testGuild, "nothing")
	assert.ErrorIs(t, err, domain.ErrNotLocked)
}

func TestLockdownDisableSkipsDeletedRoles(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform

	_, _, err := fx.guard.EnableLockdown(ctx, testGuild, "raid")
	require.NoError(err)
	p.removeRole("r-helper")

	rep, err := fx.guard.DisableLockdown(ctx, testGuild, "manual")
	require.NoError(err)
	assert.Equal(1, rep.Skipped())
	assert.Equal(1, rep.Succeeded())
	assert.Equal(domain.PermManageGuild|domain.PermBanMembers|1<<10, permsOf(t, p)["r-mod"])
}

func TestLockdownPartialFailureDoesNotAbort(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())
	p := fx.platform
	p.permErr["r-mod"] = &domain.PlatformError{Op: "edit role", Status: 403, Code: 50013, Err: errors.New("Missing Permissions")}

	st, rep, err := fx.guard.EnableLockdown(ctx, testGuild, "raid")
	require.NoError(err)
	assert.True(st.Active)
	require.Len(rep.Failed(), 1)
	assert.ErrorIs(rep.Err(), domain.ErrPermissionDenied)
	assert.NotContains(st.SavedPermissions, "r-mod")
	assert.Contains(st.SavedPermissions, "r-helper")
	assert.Len(p.deletedInvites, 2)
}

func TestLockdownAutoDisablesAfterTimeout(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	pol := testPolicy()
	pol.LockdownTimeout = 50 * time.Millisecond
	fx := newFixture(t, pol)
	before := permsOf(t, fx.platform)

	_, _, err := fx.guard.EnableLockdown(ctx, testGuild, "raid")
	require.NoError(err)
	require.True(fx.guard.Lockdown.Active(testGuild))

	require.Eventually(func() bool { return !fx.guard.Lockdown.Active(testGuild) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, before, permsOf(t, fx.platform))
}

func TestLockdownStaleTimerIsNoop(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	first, _, err := fx.guard.EnableLockdown(ctx, testGuild, "one")
	require.NoError(err)
	_, err = fx.guard.DisableLockdown(ctx, testGuild, "manual")
	require.NoError(err)
	second, _, err := fx.guard.EnableLockdown(ctx, testGuild, "two")
	require.NoError(err)

	// un timer viejo que dispara tarde no termina el lockdown nuevo
	fx.guard.Lockdown.autoDisable(testGuild, first.ID)
	st, ok := fx.guard.Lockdown.State(testGuild)
	require.True(ok)
	require.Equal(second.ID, st.ID)
}

func TestLockdownGuildsIndependent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, testPolicy())

	_, _, err := fx.guard.EnableLockdown(ctx, testGuild, "raid")
	require.NoError(t, err)
	assert.False(t, fx.guard.Lockdown.Active("other"))
	assert.Equal(t, "raid", fx.guard.Status(testGuild).LockdownReason)
	assert.False(t, fx.guard.Status("other").LockdownActive)
}
