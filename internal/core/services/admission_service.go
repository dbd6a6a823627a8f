package services

import (
	"context"
	"errors"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"

	"go.uber.org/zap"
)

// admissionService evaluates join requests against the directory record and
// the live session. The rule order is a contract: when several conditions
// fail, the reported reason is the first failing rule, so roster membership
// is always checked before code or token validity.
type admissionService struct {
	directory ports.DirectoryService
	sessions  ports.SessionService
	tokens    ports.TokenStore
	logger    *zap.SugaredLogger
}

func NewAdmissionService(directory ports.DirectoryService, sessions ports.SessionService, tokens ports.TokenStore, logger *zap.SugaredLogger) ports.AdmissionService {
	return &admissionService{
		directory: directory,
		sessions:  sessions,
		tokens:    tokens,
		logger:    logger,
	}
}

func (a *admissionService) Evaluate(ctx context.Context, req *ports.JoinRequest) ports.JoinDecision {
	record, err := a.directory.Get(ctx, req.Room)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return reject(err)
	}
	// an unclaimed room behaves as public with no password
	claimed := record != nil

	if !req.IsViewer {
		// rule 1: a locked session rejects host-role joins from non-owners
		if a.sessions.IsLocked(req.Room) && !a.sessions.IsOwner(req.Room, req.SocketID) {
			return reject(domain.ErrLocked)
		}
		// rule 2: a claimed room with a password requires prior authentication
		if claimed && record.PasswordHash != "" && !req.Authenticated {
			return reject(domain.ErrAuthRequired)
		}
		return ports.JoinDecision{Accept: true}
	}

	// rule 3: public rooms admit any viewer
	if !claimed || record.Privacy == domain.PrivacyPublic {
		return ports.JoinDecision{Accept: true}
	}

	// rule 4: private rooms without VIP gating admit any named viewer
	if !record.VipRequired {
		return ports.JoinDecision{Accept: true}
	}

	// rule 5a: roster membership comes before code or token validity
	if !record.HasVipUser(req.Name) {
		return reject(domain.ErrVipUsernameRequired)
	}

	// rule 5b: a successfully redeemed code or consumed token admits as VIP
	if req.VipCode != "" {
		if _, err := a.directory.RedeemCode(ctx, req.VipCode, req.Room); err == nil {
			return ports.JoinDecision{Accept: true, IsVip: true}
		}
	}
	if req.VipToken != "" {
		if err := a.tokens.Consume(ctx, req.VipToken, req.Room); err == nil {
			return ports.JoinDecision{Accept: true, IsVip: true}
		}
	}

	// rule 5c
	if req.VipCode == "" && req.VipToken == "" {
		return reject(domain.ErrVipCodeRequired)
	}
	return reject(domain.ErrInvalidOrExhausted)
}

func reject(reason error) ports.JoinDecision {
	return ports.JoinDecision{Reason: reason}
}
