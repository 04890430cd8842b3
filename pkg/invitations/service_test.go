package invitations

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/notifications"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

const testProjectID int64 = 10

type harness struct {
	svc      *Service
	verifier *access.Verifier
	mem      *memory
	trail    *auditTrail
	notifier *fakeNotifier
	clock    time.Time

	owner, alice, bob *models.User
	project           *models.Project
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem:      newMemory(),
		trail:    &auditTrail{},
		notifier: newFakeNotifier(),
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.owner = h.mem.addUser(&models.User{ID: 1, Email: "owner@example.com", DisplayName: "Olivia Owner"})
	h.alice = h.mem.addUser(&models.User{ID: 2, Email: "alice@example.com", DisplayName: "Alice"})
	h.bob = h.mem.addUser(&models.User{ID: 3, Email: "bob@example.com", DisplayName: "Bob"})
	h.project = h.mem.addProject(&models.Project{ID: testProjectID, Name: "Harbor View", OwnerID: h.owner.ID, Status: models.ProjectStatusActive})

	h.verifier = access.NewVerifier(h.mem, h.trail, nil)
	h.svc = NewService(h.mem, h.verifier, h.mem, h.trail, h.notifier, nil, Options{
		TTL:       7 * 24 * time.Hour,
		AcceptURL: "https://app.example.com/invitations/{token}",
	})
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) invite(t *testing.T, email string, perm models.Permission) *InviteResult {
	t.Helper()
	result, err := h.svc.Invite(context.Background(), h.owner, testProjectID, InviteInput{Email: email, Permission: perm})
	require.NoError(t, err)
	return result
}

func tokenOf(t *testing.T, r *InviteResult) string {
	t.Helper()
	require.NotNil(t, r.Invitation.Token)
	return *r.Invitation.Token
}

func TestScenario_ReadPartnerRevokedAndReinvited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sent := h.invite(t, "alice@example.com", models.PermissionRead)
	assert.Equal(t, StatusInvitationSent, sent.Status)

	_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
	require.NoError(t, err)

	_, err = h.verifier.Verify(ctx, h.alice, testProjectID, models.PermissionWrite)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err), "read partner cannot update")

	decision, err := h.verifier.Verify(ctx, h.alice, testProjectID, models.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, access.PartnerGrant{AccessID: sent.Invitation.ID, Permission: models.PermissionRead}, decision.Grant)

	require.NoError(t, h.svc.Revoke(ctx, h.owner, testProjectID, sent.Invitation.ID))
	_, err = h.verifier.Verify(ctx, h.alice, testProjectID, models.PermissionRead)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err), "revoked partner loses read")

	again := h.invite(t, "alice@example.com", models.PermissionRead)
	assert.Equal(t, StatusInvitationSent, again.Status)
	assert.NotEqual(t, sent.Invitation.ID, again.Invitation.ID, "re-invitation creates a new row")

	_, err = h.svc.Accept(ctx, h.alice, tokenOf(t, again))
	require.NoError(t, err)
	_, err = h.verifier.Verify(ctx, h.alice, testProjectID, models.PermissionRead)
	assert.NoError(t, err)
}

func TestInvite_Statuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.invite(t, "Alice@Example.com ", models.PermissionWrite)
	assert.Equal(t, StatusInvitationSent, first.Status)
	assert.Equal(t, "alice@example.com", first.Invitation.InvitedEmail)
	assert.Equal(t, models.InvitationPending, first.Invitation.State)
	assert.Equal(t, h.clock.Add(7*24*time.Hour), first.Invitation.ExpiresAt)

	mail := h.notifier.lastEmail()
	assert.Equal(t, "alice@example.com", mail.email)
	assert.Equal(t, notifications.KindInvitation, mail.msg.Kind)
	assert.Equal(t, "https://app.example.com/invitations/"+tokenOf(t, first), mail.msg.Link)

	pending := h.invite(t, "alice@example.com", models.PermissionRead)
	assert.Equal(t, StatusPendingInvitation, pending.Status)
	assert.Equal(t, models.PermissionWrite, pending.Invitation.Permission, "pending invitation is unchanged")
	assert.Equal(t, 1, h.notifier.emailCount(), "no second email")

	h.advance(8 * 24 * time.Hour)
	reinvite := h.invite(t, "alice@example.com", models.PermissionRead)
	assert.Equal(t, StatusReinviteSent, reinvite.Status)
	assert.Equal(t, first.Invitation.ID, reinvite.Invitation.ID)
	assert.NotEqual(t, tokenOf(t, first), tokenOf(t, reinvite))
	assert.Equal(t, models.PermissionRead, reinvite.Invitation.Permission)
	assert.Equal(t, models.InvitationPending, reinvite.Invitation.State)

	_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, first))
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err), "old token is dead")

	_, err = h.svc.Accept(ctx, h.alice, tokenOf(t, reinvite))
	require.NoError(t, err)

	partner := h.invite(t, "alice@example.com", models.PermissionWrite)
	assert.Equal(t, StatusAlreadyPartner, partner.Status)
	assert.Equal(t, models.InvitationAccepted, partner.Invitation.State)
}

func TestInvite_Refusals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sent := h.invite(t, "alice@example.com", models.PermissionWrite)
	_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
	require.NoError(t, err)

	t.Run("write partner cannot invite", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, h.alice, testProjectID, InviteInput{Email: "bob@example.com", Permission: models.PermissionRead})
		assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
		assert.Equal(t, access.MsgOwnerOnly, apierr.From(err).Message)
	})

	t.Run("stranger cannot invite", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, h.bob, testProjectID, InviteInput{Email: "carol@example.com", Permission: models.PermissionRead})
		assert.Equal(t, access.MsgNoAccess, apierr.From(err).Message)
	})

	t.Run("no caller", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, nil, testProjectID, InviteInput{Email: "carol@example.com", Permission: models.PermissionRead})
		assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))
	})

	t.Run("no caller with a malformed email", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, nil, testProjectID, InviteInput{Email: "not-an-email", Permission: models.PermissionRead})
		assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))
	})

	t.Run("stranger with a malformed email", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, h.bob, testProjectID, InviteInput{Email: "not-an-email", Permission: "admin"})
		assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
		assert.Equal(t, access.MsgNoAccess, apierr.From(err).Message)
		assert.Empty(t, apierr.From(err).Fields)
	})

	t.Run("owner cannot invite themselves", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, h.owner, testProjectID, InviteInput{Email: "OWNER@example.com", Permission: models.PermissionRead})
		assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))
	})

	t.Run("unknown permission", func(t *testing.T) {
		_, err := h.svc.Invite(ctx, h.owner, testProjectID, InviteInput{Email: "carol@example.com", Permission: "admin"})
		assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))
		assert.Contains(t, apierr.From(err).Fields, "permission")
	})
}

func TestInvite_ConcurrentDuplicateIsConflict(t *testing.T) {
	h := newHarness(t)
	// a row created between the lookup and the insert
	require.NoError(t, h.mem.Create(context.Background(), &models.ProjectAccess{
		ProjectID: testProjectID, InvitedEmail: "alice@example.com", Permission: models.PermissionRead,
		InvitedBy: h.owner.ID, InvitedAt: h.clock, ExpiresAt: h.clock.Add(time.Hour),
	}))
	store := &raceStore{memory: h.mem}
	h.svc.store = store

	_, err := h.svc.Invite(context.Background(), h.owner, testProjectID, InviteInput{Email: "alice@example.com", Permission: models.PermissionRead})
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))
}

// raceStore hides existing rows from the lookup
type raceStore struct{ *memory }

func (r *raceStore) FindLiveByEmail(context.Context, int64, string) (*models.ProjectAccess, error) {
	return nil, nil
}

func TestAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("email must match", func(t *testing.T) {
		h := newHarness(t)
		sent := h.invite(t, "alice@example.com", models.PermissionRead)
		_, err := h.svc.Accept(ctx, h.bob, tokenOf(t, sent))
		assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
		assert.Equal(t, MsgEmailMismatch, apierr.From(err).Message)
	})

	t.Run("expired regardless of token validity", func(t *testing.T) {
		h := newHarness(t)
		sent := h.invite(t, "alice@example.com", models.PermissionRead)
		h.advance(7*24*time.Hour + time.Second)
		_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
		assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
		assert.Equal(t, access.MsgInvitationExpired, apierr.From(err).Message)
	})

	t.Run("cannot accept twice", func(t *testing.T) {
		h := newHarness(t)
		sent := h.invite(t, "alice@example.com", models.PermissionRead)
		view, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
		require.NoError(t, err)
		assert.Equal(t, models.InvitationAccepted, view.State)
		assert.Nil(t, view.Token)

		_, err = h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
		assert.Error(t, err)
	})

	t.Run("concurrent accept loses", func(t *testing.T) {
		h := newHarness(t)
		sent := h.invite(t, "alice@example.com", models.PermissionRead)
		ok, err := h.mem.MarkAccepted(ctx, sent.Invitation.ID, h.alice.ID, h.clock)
		require.NoError(t, err)
		require.True(t, ok)

		h.svc.store = &staleTokenStore{memory: h.mem, row: sent.Invitation.ProjectAccess}
		_, err = h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
		assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))
	})

	t.Run("deleted project", func(t *testing.T) {
		h := newHarness(t)
		sent := h.invite(t, "alice@example.com", models.PermissionRead)
		deleted := h.clock
		h.project.DeletedAt = &deleted
		_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
		assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
	})

	t.Run("unknown token", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Accept(ctx, h.alice, "nope")
		assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
	})

	t.Run("owner is notified", func(t *testing.T) {
		h := newHarness(t)
		sent := h.invite(t, "alice@example.com", models.PermissionRead)
		_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
		require.NoError(t, err)
		require.Len(t, h.notifier.inbox[h.owner.ID], 1)
		assert.Equal(t, notifications.KindInvitationAccepted, h.notifier.inbox[h.owner.ID][0].Kind)
	})
}

// staleTokenStore returns a row that was already accepted behind the service's back
type staleTokenStore struct {
	*memory
	row *models.ProjectAccess
}

func (s *staleTokenStore) FindByToken(context.Context, string) (*models.ProjectAccess, error) {
	return clone(s.row), nil
}

func TestAutoAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.invite(t, "alice@example.com", models.PermissionRead)

	view, err := h.svc.AutoAccept(ctx, h.bob, tokenOf(t, sent))
	require.NoError(t, err)
	assert.Nil(t, view, "mismatched invitation is skipped")

	view, err = h.svc.AutoAccept(ctx, h.alice, tokenOf(t, sent))
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, h.alice.ID, *view.UserID)
}

func TestRevoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.invite(t, "alice@example.com", models.PermissionWrite)
	_, err := h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
	require.NoError(t, err)

	err = h.svc.Revoke(ctx, h.alice, testProjectID, sent.Invitation.ID)
	assert.Equal(t, access.MsgOwnerOnly, apierr.From(err).Message, "write partner cannot revoke")

	h.mem.addProject(&models.Project{ID: 20, Name: "Other", OwnerID: h.owner.ID})
	err = h.svc.Revoke(ctx, h.owner, 20, sent.Invitation.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err), "row belongs to another project")

	require.NoError(t, h.svc.Revoke(ctx, h.owner, testProjectID, sent.Invitation.ID))
	require.Len(t, h.notifier.inbox[h.alice.ID], 1)
	assert.Equal(t, notifications.KindAccessRevoked, h.notifier.inbox[h.alice.ID][0].Kind)

	err = h.svc.Revoke(ctx, h.owner, testProjectID, sent.Invitation.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err), "revoked is terminal")

	assert.Contains(t, h.trail.actions(), audit.ActionAccessRevoke)
}

func TestResend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.invite(t, "alice@example.com", models.PermissionRead)
	h.advance(8 * 24 * time.Hour)

	_, err := h.svc.Resend(ctx, h.bob, sent.Invitation.ID)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	view, err := h.svc.Resend(ctx, h.owner, sent.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, view.State)
	assert.Equal(t, h.clock.Add(7*24*time.Hour), view.ExpiresAt)
	assert.Equal(t, 2, h.notifier.emailCount())

	_, err = h.svc.Accept(ctx, h.alice, tokenOf(t, sent))
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	_, err = h.svc.Accept(ctx, h.alice, *view.Token)
	require.NoError(t, err)

	_, err = h.svc.Resend(ctx, h.owner, sent.Invitation.ID)
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.invite(t, "bob@example.com", models.PermissionRead)
	require.NoError(t, h.svc.Cancel(ctx, h.owner, pending.Invitation.ID))

	_, err := h.svc.Accept(ctx, h.bob, tokenOf(t, pending))
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	again := h.invite(t, "bob@example.com", models.PermissionRead)
	assert.Equal(t, StatusInvitationSent, again.Status)

	accepted := h.invite(t, "alice@example.com", models.PermissionRead)
	_, err = h.svc.Accept(ctx, h.alice, tokenOf(t, accepted))
	require.NoError(t, err)
	err = h.svc.Cancel(ctx, h.owner, accepted.Invitation.ID)
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))

	err = h.svc.Cancel(ctx, h.owner, 999)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestListAndPeek(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sent := h.invite(t, "alice@example.com", models.PermissionRead)
	h.invite(t, "bob@example.com", models.PermissionWrite)

	views, err := h.svc.List(ctx, h.owner, testProjectID)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	_, err = h.svc.List(ctx, h.alice, testProjectID)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	preview, err := h.svc.Peek(ctx, tokenOf(t, sent))
	require.NoError(t, err)
	assert.Equal(t, "Harbor View", preview.ProjectName)
	assert.Equal(t, "Olivia Owner", preview.InviterName)
	assert.Equal(t, models.InvitationPending, preview.State)

	h.advance(8 * 24 * time.Hour)
	preview, err = h.svc.Peek(ctx, tokenOf(t, sent))
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, preview.State)

	_, err = h.svc.Peek(ctx, "unknown")
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestSendReminders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	opts := ReminderOptions{Window: 48 * time.Hour, Workers: 2, Timeout: time.Second}

	soon := h.invite(t, "alice@example.com", models.PermissionRead)
	h.advance(3 * 24 * time.Hour)
	h.invite(t, "bob@example.com", models.PermissionRead)
	h.advance(3 * 24 * time.Hour)
	// alice's invitation expires in one day, bob's in four
	emailsBefore := h.notifier.emailCount()

	sent, err := h.svc.SendReminders(ctx, logger, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, emailsBefore+1, h.notifier.emailCount())
	assert.Equal(t, notifications.KindInvitationReminder, h.notifier.lastEmail().msg.Kind)
	assert.Equal(t, "alice@example.com", h.notifier.lastEmail().email)

	sent, err = h.svc.SendReminders(ctx, logger, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, sent, "a reminder is sent once")

	row, err := h.mem.FindLive(ctx, soon.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, row.State(h.clock), "reminders never change state")
}
