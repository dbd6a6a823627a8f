package services

import (
	"context"
	"testing"
	"time"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"
	"relaycast/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Issue(ctx context.Context, room domain.RoomName) (*domain.VipToken, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VipToken), args.Error(1)
}

func (m *MockTokenStore) Consume(ctx context.Context, token string, room domain.RoomName) error {
	args := m.Called(ctx, token, room)
	return args.Error(0)
}

type admissionFixture struct {
	directory ports.DirectoryService
	sessions  ports.SessionService
	tokens    *memory.TokenStore
	admission ports.AdmissionService
}

func newAdmissionFixture(t *testing.T) *admissionFixture {
	t.Helper()
	log := zap.NewNop().Sugar()

	directory := NewDirectoryService(memory.NewRoomRepository(), 8, 64, log)
	sessions := NewSessionService(log)
	tokens := memory.NewTokenStore(15 * time.Minute)
	return &admissionFixture{
		directory: directory,
		sessions:  sessions,
		tokens:    tokens,
		admission: NewAdmissionService(directory, sessions, tokens, log),
	}
}

func viewerJoin(room domain.RoomName, name string) *ports.JoinRequest {
	return &ports.JoinRequest{Room: room, SocketID: "sock-viewer", Name: name, IsViewer: true}
}

func TestEvaluateUnclaimedRoomAdmitsEveryone(t *testing.T) {
	f := newAdmissionFixture(t)

	host := f.admission.Evaluate(context.Background(), &ports.JoinRequest{Room: "fresh", SocketID: "h1", Name: "Host"})
	assert.True(t, host.Accept)

	viewer := f.admission.Evaluate(context.Background(), viewerJoin("fresh", "Alice"))
	assert.True(t, viewer.Accept)
}

func TestEvaluateRoomClaimedAfterFirstHostJoined(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	first := f.admission.Evaluate(ctx, &ports.JoinRequest{Room: "fresh", SocketID: "h1", Name: "Host"})
	require.True(t, first.Accept)
	f.sessions.Join("fresh", "h1", "Host", false, false)

	// the name is claimed with a password while the session runs
	_, err := f.directory.CreateRoom(ctx, "fresh", "pw1", domain.PrivacyPublic)
	require.NoError(t, err)

	second := f.admission.Evaluate(ctx, &ports.JoinRequest{Room: "fresh", SocketID: "h2", Name: "Other"})
	assert.ErrorIs(t, second.Reason, domain.ErrAuthRequired)
}

func TestEvaluateLockedRoomRejectsHostJoins(t *testing.T) {
	f := newAdmissionFixture(t)

	f.sessions.Join("room", "owner", "Owner", false, false)
	f.sessions.Lock("room", "owner", true)

	decision := f.admission.Evaluate(context.Background(), &ports.JoinRequest{Room: "room", SocketID: "h2", Name: "Other"})
	assert.False(t, decision.Accept)
	assert.ErrorIs(t, decision.Reason, domain.ErrLocked)

	// the owner may rejoin their own locked room
	owner := f.admission.Evaluate(context.Background(), &ports.JoinRequest{Room: "room", SocketID: "owner", Name: "Owner"})
	assert.True(t, owner.Accept)

	// lock only gates the host role
	viewer := f.admission.Evaluate(context.Background(), viewerJoin("room", "Alice"))
	assert.True(t, viewer.Accept)
}

func TestEvaluatePasswordedRoomRequiresAuth(t *testing.T) {
	f := newAdmissionFixture(t)
	_, err := f.directory.CreateRoom(context.Background(), "secure", "hunter22", domain.PrivacyPublic)
	require.NoError(t, err)

	denied := f.admission.Evaluate(context.Background(), &ports.JoinRequest{Room: "secure", SocketID: "h1", Name: "Host"})
	assert.ErrorIs(t, denied.Reason, domain.ErrAuthRequired)

	allowed := f.admission.Evaluate(context.Background(), &ports.JoinRequest{Room: "secure", SocketID: "h1", Name: "Host", Authenticated: true})
	assert.True(t, allowed.Accept)

	// viewers never need the room password
	viewer := f.admission.Evaluate(context.Background(), viewerJoin("secure", "Alice"))
	assert.True(t, viewer.Accept)
}

func TestEvaluateLockedBeforeAuthRequired(t *testing.T) {
	f := newAdmissionFixture(t)
	_, err := f.directory.CreateRoom(context.Background(), "secure", "hunter22", domain.PrivacyPublic)
	require.NoError(t, err)

	f.sessions.Join("secure", "owner", "Owner", false, false)
	f.sessions.Lock("secure", "owner", true)

	// both rules fail; the lock is reported because it is checked first
	decision := f.admission.Evaluate(context.Background(), &ports.JoinRequest{Room: "secure", SocketID: "h2", Name: "Other"})
	assert.ErrorIs(t, decision.Reason, domain.ErrLocked)
}

func TestEvaluatePrivateRoomWithoutGatingAdmitsViewers(t *testing.T) {
	f := newAdmissionFixture(t)
	_, err := f.directory.CreateRoom(context.Background(), "private", "", domain.PrivacyPrivate)
	require.NoError(t, err)

	decision := f.admission.Evaluate(context.Background(), viewerJoin("private", "Alice"))
	assert.True(t, decision.Accept)
	assert.False(t, decision.IsVip)
}

func TestEvaluateRosterCheckedBeforeCodeValidity(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	_, err := f.directory.CreateRoom(ctx, "private", "", domain.PrivacyPrivate)
	require.NoError(t, err)
	_, err = f.directory.UpdateVipRequired(ctx, "private", true)
	require.NoError(t, err)
	code, _, err := f.directory.GenerateVipCode(ctx, "private", 5)
	require.NoError(t, err)

	// a valid code does not help a name that is not on the roster
	req := viewerJoin("private", "Stranger")
	req.VipCode = code
	decision := f.admission.Evaluate(ctx, req)
	assert.ErrorIs(t, decision.Reason, domain.ErrVipUsernameRequired)
}

func TestEvaluateVipCodeFlow(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	_, err := f.directory.CreateRoom(ctx, "private", "", domain.PrivacyPrivate)
	require.NoError(t, err)
	_, err = f.directory.UpdateVipRequired(ctx, "private", true)
	require.NoError(t, err)
	_, err = f.directory.AddVipUser(ctx, "private", "Alice")
	require.NoError(t, err)
	code, _, err := f.directory.GenerateVipCode(ctx, "private", 1)
	require.NoError(t, err)

	// without a code the roster name alone is not enough
	decision := f.admission.Evaluate(ctx, viewerJoin("private", "Alice"))
	assert.ErrorIs(t, decision.Reason, domain.ErrVipCodeRequired)

	// a valid single-use code admits as VIP
	req := viewerJoin("private", "Alice")
	req.VipCode = code
	decision = f.admission.Evaluate(ctx, req)
	assert.True(t, decision.Accept)
	assert.True(t, decision.IsVip)

	// the code is now exhausted
	decision = f.admission.Evaluate(ctx, req)
	assert.False(t, decision.Accept)
	assert.ErrorIs(t, decision.Reason, domain.ErrInvalidOrExhausted)
}

func TestEvaluateRosterIsCaseInsensitive(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	_, err := f.directory.CreateRoom(ctx, "private", "", domain.PrivacyPrivate)
	require.NoError(t, err)
	_, err = f.directory.UpdateVipRequired(ctx, "private", true)
	require.NoError(t, err)
	_, err = f.directory.AddVipUser(ctx, "private", "Alice")
	require.NoError(t, err)
	code, _, err := f.directory.GenerateVipCode(ctx, "private", 0)
	require.NoError(t, err)

	req := viewerJoin("private", "ALICE")
	req.VipCode = code
	decision := f.admission.Evaluate(ctx, req)
	assert.True(t, decision.Accept)
}

func TestEvaluateCodeForAnotherRoomIsRejected(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	for _, room := range []domain.RoomName{"target", "other"} {
		_, err := f.directory.CreateRoom(ctx, room, "", domain.PrivacyPrivate)
		require.NoError(t, err)
		_, err = f.directory.UpdateVipRequired(ctx, room, true)
		require.NoError(t, err)
		_, err = f.directory.AddVipUser(ctx, room, "Alice")
		require.NoError(t, err)
	}
	otherCode, _, err := f.directory.GenerateVipCode(ctx, "other", 0)
	require.NoError(t, err)

	req := viewerJoin("target", "Alice")
	req.VipCode = otherCode
	decision := f.admission.Evaluate(ctx, req)
	assert.False(t, decision.Accept)
	assert.ErrorIs(t, decision.Reason, domain.ErrInvalidOrExhausted)
}

func TestEvaluateWrongRoomJoinDoesNotBurnCode(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	for _, room := range []domain.RoomName{"target", "other"} {
		_, err := f.directory.CreateRoom(ctx, room, "", domain.PrivacyPrivate)
		require.NoError(t, err)
		_, err = f.directory.UpdateVipRequired(ctx, room, true)
		require.NoError(t, err)
		_, err = f.directory.AddVipUser(ctx, room, "Alice")
		require.NoError(t, err)
	}
	code, _, err := f.directory.GenerateVipCode(ctx, "other", 1)
	require.NoError(t, err)

	// the rejected cross-room attempt must not consume the single use
	req := viewerJoin("target", "Alice")
	req.VipCode = code
	decision := f.admission.Evaluate(ctx, req)
	assert.ErrorIs(t, decision.Reason, domain.ErrInvalidOrExhausted)

	req = viewerJoin("other", "Alice")
	req.VipCode = code
	decision = f.admission.Evaluate(ctx, req)
	assert.True(t, decision.Accept)
	assert.True(t, decision.IsVip)
}

func TestEvaluateVipTokenFlow(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	_, err := f.directory.CreateRoom(ctx, "private", "", domain.PrivacyPrivate)
	require.NoError(t, err)
	_, err = f.directory.UpdateVipRequired(ctx, "private", true)
	require.NoError(t, err)
	_, err = f.directory.AddVipUser(ctx, "private", "Alice")
	require.NoError(t, err)

	token, err := f.tokens.Issue(ctx, "private")
	require.NoError(t, err)

	req := viewerJoin("private", "Alice")
	req.VipToken = token.Token
	decision := f.admission.Evaluate(ctx, req)
	assert.True(t, decision.Accept)
	assert.True(t, decision.IsVip)

	// tokens are single use
	decision = f.admission.Evaluate(ctx, req)
	assert.ErrorIs(t, decision.Reason, domain.ErrInvalidOrExhausted)
}

func TestEvaluateTokenNotConsultedWhenRosterFails(t *testing.T) {
	log := zap.NewNop().Sugar()
	directory := NewDirectoryService(memory.NewRoomRepository(), 8, 64, log)
	sessions := NewSessionService(log)
	tokens := new(MockTokenStore)
	admission := NewAdmissionService(directory, sessions, tokens, log)

	ctx := context.Background()
	_, err := directory.CreateRoom(ctx, "private", "", domain.PrivacyPrivate)
	require.NoError(t, err)
	_, err = directory.UpdateVipRequired(ctx, "private", true)
	require.NoError(t, err)

	req := viewerJoin("private", "Stranger")
	req.VipToken = "some-token"
	decision := admission.Evaluate(ctx, req)
	assert.ErrorIs(t, decision.Reason, domain.ErrVipUsernameRequired)

	// the store must not be touched, or a rejected join would burn the token
	tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}
