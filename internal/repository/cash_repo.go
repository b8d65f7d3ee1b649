package repository

import (
	"context"
	"errors"

	"gymadmin/internal/apperr"
	"gymadmin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashRepository is the durable-store boundary of the cash engine.
// Atomicity contract:
//   - CreateSession is an atomic check-and-create: the partial unique index
//     on status='open' makes the second of two concurrent opens fail.
//   - AppendMovement and CloseSession serialize on the session row
//     (SELECT ... FOR UPDATE), so no movement can land between the closing
//     snapshot computation and the status flip.
type CashRepository interface {
	CreateSession(ctx context.Context, s *model.CashSession) error
	FindOpenSession(ctx context.Context) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	AppendMovement(ctx context.Context, m *model.Movement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.Movement, error)
	// CloseSession locks the session, loads its ledger, and invokes close to
	// compute and apply the closing fields; everything commits as one unit.
	CloseSession(ctx context.Context, id uuid.UUID, close func(s *model.CashSession, movements []model.Movement) error) (*model.CashSession, error)
	ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error)
}

type cashRepo struct{ db *gorm.DB }

func NewCashRepository(db *gorm.DB) CashRepository { return &cashRepo{db: db} }

func (r *cashRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// uni_cash_sessions_open fired: the other open won the race.
		return apperr.Conflict("ya existe una sesión de caja abierta")
	}
	return err
}

func (r *cashRepo) FindOpenSession(ctx context.Context) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Where("status = ?", model.SessionOpen).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("sesión de caja no encontrada")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashRepo) AppendMovement(ctx context.Context, m *model.Movement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.CashSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&s, "id = ?", m.SessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("sesión de caja no encontrada")
		}
		if err != nil {
			return err
		}
		if s.Status != model.SessionOpen {
			return apperr.InvalidState("la sesión de caja no está abierta")
		}
		return tx.Create(m).Error
	})
}

func (r *cashRepo) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.Movement, error) {
	var movs []model.Movement
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cashRepo) CloseSession(ctx context.Context, id uuid.UUID, close func(s *model.CashSession, movements []model.Movement) error) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&s, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("sesión de caja no encontrada")
		}
		if err != nil {
			return err
		}
		if s.Status != model.SessionOpen {
			return apperr.InvalidState("la sesión de caja ya está cerrada")
		}

		var movs []model.Movement
		if err := tx.Where("session_id = ?", id).Order("id ASC").Find(&movs).Error; err != nil {
			return err
		}
		if err := close(&s, movs); err != nil {
			return err
		}
		return tx.Save(&s).Error
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashRepo) ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.CashSession{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).Order("opened_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}
