package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"gymadmin/internal/apperr"
	"gymadmin/internal/dto"
	"gymadmin/internal/model"
	"gymadmin/internal/repository"
	"gymadmin/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Full in-memory CashRepository ────────────────────────────────────────────
// Mirrors the store contract: the mutex stands in for the row locks and the
// open-session check in CreateSession stands in for the partial unique index.

type fakeCashRepo struct {
	mu         sync.Mutex
	sessions   map[uuid.UUID]*model.CashSession
	movements  []model.Movement
	nextMovID  int64
}

func newFakeCashRepo() *fakeCashRepo {
	return &fakeCashRepo{sessions: make(map[uuid.UUID]*model.CashSession)}
}

func (r *fakeCashRepo) CreateSession(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Status == model.SessionOpen {
			return apperr.Conflict("ya existe una sesión de caja abierta")
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.OpenedAt.IsZero() {
		s.OpenedAt = time.Now()
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeCashRepo) FindOpenSession(_ context.Context) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Status == model.SessionOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCashRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("sesión de caja no encontrada")
	}
	cp := *s
	return &cp, nil
}

func (r *fakeCashRepo) AppendMovement(_ context.Context, m *model.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[m.SessionID]
	if !ok {
		return apperr.NotFound("sesión de caja no encontrada")
	}
	if s.Status != model.SessionOpen {
		return apperr.InvalidState("la sesión de caja no está abierta")
	}
	r.nextMovID++
	m.ID = r.nextMovID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeCashRepo) ListMovements(_ context.Context, sessionID uuid.UUID) ([]model.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.movementsLocked(sessionID), nil
}

func (r *fakeCashRepo) movementsLocked(sessionID uuid.UUID) []model.Movement {
	var out []model.Movement
	for _, m := range r.movements {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeCashRepo) CloseSession(_ context.Context, id uuid.UUID, close func(s *model.CashSession, movements []model.Movement) error) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("sesión de caja no encontrada")
	}
	if s.Status != model.SessionOpen {
		return nil, apperr.InvalidState("la sesión de caja ya está cerrada")
	}
	// Work on a copy: a failed close must leave the session untouched.
	cp := *s
	if err := close(&cp, r.movementsLocked(id)); err != nil {
		return nil, err
	}
	r.sessions[id] = &cp
	out := cp
	return &out, nil
}

func (r *fakeCashRepo) ListSessions(_ context.Context, page, limit int) ([]model.CashSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]model.CashSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

var _ repository.CashRepository = (*fakeCashRepo)(nil)

// ── Helpers ──────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func openSession(t *testing.T, svc service.CashService, amount string) *dto.SessionResponse {
	t.Helper()
	resp, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
		OpeningAmount: dec(amount),
	})
	require.NoError(t, err)
	return resp
}

func appendMovement(t *testing.T, svc service.CashService, sessionID, typ, amount, method, descr string) {
	t.Helper()
	_, err := svc.Append(context.Background(), uuid.New(), dto.AppendMovementRequest{
		SessionID:     sessionID,
		Type:          typ,
		PaymentMethod: method,
		Amount:        dec(amount),
		Description:   descr,
	})
	require.NoError(t, err)
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func TestOpenSession(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	resp := openSession(t, svc, "1000")
	assert.Equal(t, model.SessionOpen, resp.Status)
	assert.Equal(t, "1000", resp.OpeningAmount.String())
	assert.Nil(t, resp.ClosedAt)
}

func TestOpenSessionNegativeAmount(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	_, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
		OpeningAmount: dec("-1"),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestOpenSessionConflict(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	first := openSession(t, svc, "1000")

	_, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
		OpeningAmount: dec("2000"),
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The existing session is left unmodified
	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, "1000", active.OpeningAmount.String())
}

func TestConcurrentOpensSingleWinner(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
				OpeningAmount: dec("500"),
			})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestGetActiveNone(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

// ── Ledger ───────────────────────────────────────────────────────────────────

func TestAppendValidation(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)
	sess := openSession(t, svc, "1000")

	cases := []struct {
		name string
		req  dto.AppendMovementRequest
	}{
		{"zero amount", dto.AppendMovementRequest{
			SessionID: sess.ID, Type: model.MovementSale, PaymentMethod: model.MethodCash, Amount: dec("0")}},
		{"negative amount", dto.AppendMovementRequest{
			SessionID: sess.ID, Type: model.MovementSale, PaymentMethod: model.MethodCash, Amount: dec("-10")}},
		{"unknown type", dto.AppendMovementRequest{
			SessionID: sess.ID, Type: "refund", PaymentMethod: model.MethodCash, Amount: dec("10")}},
		{"unknown method", dto.AppendMovementRequest{
			SessionID: sess.ID, Type: model.MovementSale, PaymentMethod: "check", Amount: dec("10")}},
		{"bad session id", dto.AppendMovementRequest{
			SessionID: "not-a-uuid", Type: model.MovementSale, PaymentMethod: model.MethodCash, Amount: dec("10")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Append(context.Background(), uuid.New(), tc.req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestAppendToClosedSession(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)
	sess := openSession(t, svc, "1000")

	_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID: sess.ID,
		Entered:   dto.EnteredAmounts{Cash: decPtr("1000")},
	})
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), uuid.New(), dto.AppendMovementRequest{
		SessionID:     sess.ID,
		Type:          model.MovementSale,
		PaymentMethod: model.MethodCash,
		Amount:        dec("100"),
	})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestListMovementsInsertionOrder(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)
	sess := openSession(t, svc, "1000")

	appendMovement(t, svc, sess.ID, model.MovementSale, "500", model.MethodCash, "Venta #1")
	appendMovement(t, svc, sess.ID, model.MovementIncome, "20", model.MethodCash, "Fondo de cambio")
	appendMovement(t, svc, sess.ID, model.MovementExpense, "50", model.MethodCash, "Compra de insumos")

	movs, err := svc.ListMovements(context.Background(), uuid.MustParse(sess.ID))
	require.NoError(t, err)
	require.Len(t, movs, 3)
	assert.True(t, movs[0].ID < movs[1].ID && movs[1].ID < movs[2].ID)
	assert.Equal(t, "Venta #1", movs[0].Description)
	assert.Equal(t, "Compra de insumos", movs[2].Description)
}

// ── Closing ──────────────────────────────────────────────────────────────────

func TestCloseNotFound(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID: uuid.NewString(),
		Entered:   dto.EnteredAmounts{Cash: decPtr("100")},
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCloseTwice(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)
	sess := openSession(t, svc, "1000")

	req := dto.CloseSessionRequest{
		SessionID: sess.ID,
		Entered:   dto.EnteredAmounts{Cash: decPtr("1000")},
	}
	_, err := svc.Close(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), uuid.New(), req)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestCloseRequiresEnteredAmount(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)
	sess := openSession(t, svc, "1000")

	_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID: sess.ID,
		Entered:   dto.EnteredAmounts{},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// A failed close leaves the session open
	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
}

func TestCloseRoundTrip(t *testing.T) {
	repo := newFakeCashRepo()
	svc := service.NewCashService(repo, nil)
	sess := openSession(t, svc, "1000")
	appendMovement(t, svc, sess.ID, model.MovementSale, "500", model.MethodCash, "Venta #1")

	closed, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID: sess.ID,
		Entered:   dto.EnteredAmounts{Cash: decPtr("1480"), Transfer: decPtr("10"), Card: decPtr("5")},
	})
	require.NoError(t, err)

	// Re-read and verify the persisted per-instrument counts sum to the
	// closing amount the difference was computed against.
	stored, err := repo.FindSessionByID(context.Background(), uuid.MustParse(sess.ID))
	require.NoError(t, err)
	sum := stored.ClosingCash.Add(*stored.ClosingTransfer).Add(*stored.ClosingCard)
	assert.True(t, sum.Equal(*stored.ClosingAmount))
	assert.True(t, closed.ClosingAmount.Equal(dec("1495")))
	// entered 1495 vs expected 1500 → shortage of 5
	assert.True(t, stored.Difference.Equal(dec("-5")))
}

// ── Spec scenarios A–E ───────────────────────────────────────────────────────

func TestSessionLifecycleScenario(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	// A: open 1000 and record a sale, a membership payment, and an expense
	sess := openSession(t, svc, "1000")
	appendMovement(t, svc, sess.ID, model.MovementSale, "500", model.MethodCash, "Venta #1")
	appendMovement(t, svc, sess.ID, model.MovementMembership, "300", model.MethodTransfer, "Plan - Mensual")
	appendMovement(t, svc, sess.ID, model.MovementExpense, "50", model.MethodCash, "Compra de insumos")

	sessionID := uuid.MustParse(sess.ID)
	b, err := svc.GetBreakdown(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, b.Income.Cash.Equal(dec("500")))
	assert.True(t, b.Income.Transfer.Equal(dec("300")))
	assert.True(t, b.Expense.Cash.Equal(dec("50")))
	assert.True(t, b.ExpectedCash.Equal(dec("1450")))
	assert.True(t, b.ExpectedTransfer.Equal(dec("300")))
	require.Len(t, b.MembershipByPlan, 1)
	assert.Equal(t, "Mensual", b.MembershipByPlan[0].Plan)

	// B: a sale cancellation is an expense classified as a sale reversal
	appendMovement(t, svc, sess.ID, model.MovementExpense, "500", model.MethodCash, "Cancelación venta #1")

	b, err = svc.GetBreakdown(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, b.ExpenseByCategory[model.MethodCash][string(service.CategorySaleReversal)].Equal(dec("500")))
	assert.True(t, b.ExpenseByCategory[model.MethodCash][string(service.CategoryManualExpense)].Equal(dec("50")))
	assert.True(t, b.ExpectedCash.Equal(dec("950")))

	// C: an exact count closes balanced
	closed, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID: sess.ID,
		Entered:   dto.EnteredAmounts{Cash: decPtr("950"), Transfer: decPtr("300"), Card: decPtr("0")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)
	assert.True(t, closed.ClosingAmount.Equal(dec("1250")))
	assert.True(t, closed.Difference.IsZero())
	require.NotNil(t, closed.Balanced)
	assert.True(t, *closed.Balanced)
}

func TestCloseShortage(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	sess := openSession(t, svc, "1000")
	appendMovement(t, svc, sess.ID, model.MovementSale, "500", model.MethodCash, "Venta #1")
	appendMovement(t, svc, sess.ID, model.MovementMembership, "300", model.MethodTransfer, "Plan - Mensual")
	appendMovement(t, svc, sess.ID, model.MovementExpense, "50", model.MethodCash, "Compra de insumos")
	appendMovement(t, svc, sess.ID, model.MovementExpense, "500", model.MethodCash, "Cancelación venta #1")

	// D: entered 1200 vs expected 1250 → 50 shortage
	closed, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID: sess.ID,
		Entered:   dto.EnteredAmounts{Cash: decPtr("900"), Transfer: decPtr("300")},
	})
	require.NoError(t, err)
	assert.True(t, closed.Difference.Equal(dec("-50")))
	require.NotNil(t, closed.Balanced)
	assert.False(t, *closed.Balanced)
}

func TestHistoryPagination(t *testing.T) {
	svc := service.NewCashService(newFakeCashRepo(), nil)

	for i := 0; i < 3; i++ {
		sess := openSession(t, svc, "100")
		_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
			SessionID: sess.ID,
			Entered:   dto.EnteredAmounts{Cash: decPtr("100")},
		})
		require.NoError(t, err)
	}

	page, total, err := svc.History(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
}
