package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gymadmin/internal/apperr"
	"gymadmin/internal/dto"
	"gymadmin/internal/model"
	"gymadmin/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Closed-session breakdowns are immutable, so cache entries only need a TTL
// to bound Redis memory, not for correctness.
const breakdownCacheTTL = 24 * time.Hour

// CashService owns the till-session lifecycle: open → append movements →
// close. It is the only writer of session state; breakdowns are pure reads.
type CashService interface {
	Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	GetActive(ctx context.Context) (*dto.SessionResponse, error)
	Append(ctx context.Context, operatorID uuid.UUID, req dto.AppendMovementRequest) (*dto.MovementResponse, error)
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error)
	GetBreakdown(ctx context.Context, sessionID uuid.UUID) (*dto.Breakdown, error)
	GetReport(ctx context.Context, sessionID uuid.UUID) (*dto.SessionReportResponse, error)
	Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error)
	History(ctx context.Context, page, limit int) ([]dto.SessionResponse, int64, error)
}

type cashService struct {
	repo repository.CashRepository
	rdb  *redis.Client // optional — nil disables the breakdown cache
}

func NewCashService(repo repository.CashRepository, rdb *redis.Client) CashService {
	return &cashService{repo: repo, rdb: rdb}
}

// ── Open ─────────────────────────────────────────────────────────────────────

func (s *cashService) Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if req.OpeningAmount.IsNegative() {
		return nil, apperr.Validation("el monto inicial no puede ser negativo")
	}

	// Friendly pre-check; the partial unique index is what actually decides
	// a race between two concurrent opens.
	if existing, err := s.repo.FindOpenSession(ctx); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperr.Conflict("ya existe una sesión de caja abierta")
	}

	session := &model.CashSession{
		Status:        model.SessionOpen,
		OperatorID:    operatorID,
		OpeningAmount: req.OpeningAmount.Round(2),
		OpenedAt:      time.Now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("operator_id", operatorID.String()).
		Str("opening_amount", session.OpeningAmount.String()).
		Msg("cash session opened")

	return sessionToResponse(session), nil
}

// ── GetActive ────────────────────────────────────────────────────────────────

func (s *cashService) GetActive(ctx context.Context) (*dto.SessionResponse, error) {
	session, err := s.repo.FindOpenSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	return sessionToResponse(session), nil
}

// ── Append ───────────────────────────────────────────────────────────────────
// Origin systems (sales, membership billing, manual entry) feed the ledger
// through here. Movements are immutable — there is no update or delete path.

func (s *cashService) Append(ctx context.Context, operatorID uuid.UUID, req dto.AppendMovementRequest) (*dto.MovementResponse, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("session_id inválido: %v", err))
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("el monto debe ser mayor a cero")
	}
	if !model.ValidMovementType(req.Type) {
		return nil, apperr.Validation(fmt.Sprintf("tipo de movimiento no reconocido: %q", req.Type))
	}
	if !model.ValidPaymentMethod(req.PaymentMethod) {
		return nil, apperr.Validation(fmt.Sprintf("medio de pago no reconocido: %q", req.PaymentMethod))
	}

	mov := &model.Movement{
		SessionID:      sessionID,
		Type:           req.Type,
		PaymentMethod:  req.PaymentMethod,
		Amount:         req.Amount.Round(2),
		Description:    req.Description,
		OriginCategory: req.OriginCategory,
		PlanName:       req.PlanName,
		OperatorID:     operatorID,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.AppendMovement(ctx, mov); err != nil {
		return nil, err
	}
	return movementToResponse(mov), nil
}

// ── ListMovements ────────────────────────────────────────────────────────────

func (s *cashService) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error) {
	if _, err := s.repo.FindSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	movs, err := s.repo.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, len(movs))
	for i := range movs {
		out[i] = *movementToResponse(&movs[i])
	}
	return out, nil
}

// ── GetBreakdown ─────────────────────────────────────────────────────────────

func (s *cashService) GetBreakdown(ctx context.Context, sessionID uuid.UUID) (*dto.Breakdown, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	closed := session.Status == model.SessionClosed
	cacheKey := "cash:breakdown:" + sessionID.String()

	// Only closed sessions are cacheable — their ledger can no longer change.
	if closed && s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var b dto.Breakdown
			if jsonErr := json.Unmarshal(cached, &b); jsonErr == nil {
				return &b, nil
			}
		}
	}

	movs, err := s.repo.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b := ComputeBreakdown(session.OpeningAmount, movs)

	if closed && s.rdb != nil {
		if raw, jsonErr := json.Marshal(b); jsonErr == nil {
			// Best effort — a cache failure never fails the read.
			_ = s.rdb.Set(ctx, cacheKey, raw, breakdownCacheTTL).Err()
		}
	}
	return b, nil
}

// ── GetReport ────────────────────────────────────────────────────────────────

func (s *cashService) GetReport(ctx context.Context, sessionID uuid.UUID) (*dto.SessionReportResponse, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.GetBreakdown(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.SessionReportResponse{
		Session:   *sessionToResponse(session),
		Breakdown: breakdown,
	}, nil
}

// ── Close ────────────────────────────────────────────────────────────────────
// The whole closing — ledger snapshot, reconciliation, status flip — runs
// inside one store transaction holding the session row lock, so no movement
// can slip in between the snapshot and the flip.

func (s *cashService) Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("session_id inválido: %v", err))
	}

	session, err := s.repo.CloseSession(ctx, sessionID, func(sess *model.CashSession, movs []model.Movement) error {
		breakdown := ComputeBreakdown(sess.OpeningAmount, movs)
		snap, err := Reconcile(breakdown, req.Entered, req.Notes)
		if err != nil {
			return err
		}

		now := time.Now()
		sess.Status = model.SessionClosed
		sess.ClosingAmount = &snap.ClosingAmount
		sess.ClosingCash = &snap.ClosingCash
		sess.ClosingTransfer = &snap.ClosingTransfer
		sess.ClosingCard = &snap.ClosingCard
		sess.Difference = &snap.Difference
		sess.Notes = snap.Notes
		sess.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("operator_id", operatorID.String()).
		Str("difference", session.Difference.String()).
		Bool("balanced", Balanced(*session.Difference)).
		Msg("cash session closed")

	return sessionToResponse(session), nil
}

// ── History ──────────────────────────────────────────────────────────────────

func (s *cashService) History(ctx context.Context, page, limit int) ([]dto.SessionResponse, int64, error) {
	sessions, total, err := s.repo.ListSessions(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = *sessionToResponse(&sessions[i])
	}
	return out, total, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func sessionToResponse(s *model.CashSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:              s.ID.String(),
		Status:          s.Status,
		OperatorID:      s.OperatorID.String(),
		OpeningAmount:   s.OpeningAmount,
		ClosingAmount:   s.ClosingAmount,
		ClosingCash:     s.ClosingCash,
		ClosingTransfer: s.ClosingTransfer,
		ClosingCard:     s.ClosingCard,
		Difference:      s.Difference,
		Notes:           s.Notes,
		OpenedAt:        s.OpenedAt.Format(time.RFC3339),
	}
	if s.Difference != nil {
		balanced := Balanced(*s.Difference)
		resp.Balanced = &balanced
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}

func movementToResponse(m *model.Movement) *dto.MovementResponse {
	return &dto.MovementResponse{
		ID:            m.ID,
		SessionID:     m.SessionID.String(),
		Type:          m.Type,
		PaymentMethod: m.PaymentMethod,
		Amount:        m.Amount,
		Description:   m.Description,
		Category:      string(Classify(m)),
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
