package reductions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/ledger"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/auditlog"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeStore mirrors the Postgres store: ApplyApproved and ApproveReduction
// re-check the ledger floor against the current notice state under the lock.
type fakeStore struct {
	mu         sync.Mutex
	notices    map[string]*models.Notice
	taxpayers  map[string]*models.Taxpayer
	users      map[int64]*models.User
	reductions map[string]*models.NoticeReduction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notices:    make(map[string]*models.Notice),
		taxpayers:  make(map[string]*models.Taxpayer),
		users:      make(map[int64]*models.User),
		reductions: make(map[string]*models.NoticeReduction),
	}
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) TaxpayerByCode(_ context.Context, code string) (*models.Taxpayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.taxpayers {
		if t.Code == code {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) NoticeByNumber(_ context.Context, number string) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notices {
		if n.Number == number {
			c := *n
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ReductionByID(_ context.Context, id string) (*models.NoticeReduction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reductions[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertReduction(_ context.Context, r *models.NoticeReduction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *r
	f.reductions[r.ID] = &c
	return nil
}

func (f *fakeStore) applyLocked(r *models.NoticeReduction) (*models.Notice, error) {
	n, ok := f.notices[r.NoticeID]
	if !ok {
		return nil, apperr.NotFound("notice not found")
	}
	st, err := ledger.ApplyTotalDelta(n.TotalAmount, n.AmountPaid, r.Amount)
	if err != nil {
		return nil, err
	}
	n.TotalAmount = st.TotalAmount
	n.AmountPaid = st.AmountPaid
	n.Status = st.Status
	c := *n
	return &c, nil
}

func (f *fakeStore) ApplyApproved(_ context.Context, r *models.NoticeReduction) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.applyLocked(r)
	if err != nil {
		return nil, err
	}
	c := *r
	f.reductions[r.ID] = &c
	return n, nil
}

func (f *fakeStore) ApproveReduction(_ context.Context, r *models.NoticeReduction, reviewerID int64, note *string, at time.Time) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.reductions[r.ID]
	if !ok || stored.Status != models.ReductionPending {
		return nil, apperr.New(apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed,
			"reduction already reviewed")
	}
	n, err := f.applyLocked(stored)
	if err != nil {
		return nil, err
	}
	stored.Status = models.ReductionApproved
	stored.ReviewedByID = &reviewerID
	stored.ReviewNote = note
	stored.ReviewedAt = &at
	return n, nil
}

func (f *fakeStore) MarkRejected(_ context.Context, id string, reviewerID int64, note *string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.reductions[id]
	if !ok || stored.Status != models.ReductionPending {
		return apperr.New(apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed,
			"reduction already reviewed")
	}
	stored.Status = models.ReductionRejected
	stored.ReviewedByID = &reviewerID
	stored.ReviewNote = note
	stored.ReviewedAt = &at
	return nil
}

func (f *fakeStore) PendingForReviewer(_ context.Context, reviewerID int64) ([]models.NoticeReduction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NoticeReduction
	for _, r := range f.reductions {
		if r.Status != models.ReductionPending {
			continue
		}
		u, ok := f.users[r.CreatedByID]
		if !ok || u.SupervisorID == nil || *u.SupervisorID != reviewerID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAudit) Append(_ context.Context, e auditlog.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, e.Action)
	return nil
}

const (
	supervisorID = int64(1)
	agentID      = int64(2)
	adminID      = int64(3)
	orphanID     = int64(4)
	strangerID   = int64(5)
)

func fixture() (*fakeStore, *fakeAudit, *Service) {
	store := newFakeStore()
	sup := supervisorID
	store.users[supervisorID] = &models.User{ID: supervisorID, Name: "Supervisor", Role: models.RoleAdmin}
	store.users[agentID] = &models.User{ID: agentID, Name: "Agent", Role: models.RoleAgent, SupervisorID: &sup, CommuneID: "com-1"}
	store.users[adminID] = &models.User{ID: adminID, Name: "Director", Role: models.RoleAdmin}
	store.users[orphanID] = &models.User{ID: orphanID, Name: "Orphan", Role: models.RoleAgent, CommuneID: "com-1"}
	store.users[strangerID] = &models.User{ID: strangerID, Name: "Stranger", Role: models.RoleAdmin}

	store.taxpayers["tp-1"] = &models.Taxpayer{ID: "tp-1", Code: "TP-0001", Name: "Moussa Garba", CommuneID: "com-1"}
	store.notices["nt-1"] = &models.Notice{
		ID: "nt-1", Number: "AV-2025-000123", TaxpayerID: "tp-1", Year: 2025,
		TotalAmount: d("70000"), AmountPaid: d("15000"), Status: models.NoticePartial,
	}

	audit := &fakeAudit{}
	return store, audit, NewService(store, audit)
}

func request(amount string, requesterID int64) RequestInput {
	return RequestInput{
		TaxpayerCode: "TP-0001", NoticeNumber: "AV-2025-000123",
		Amount: amount, Reason: "hardship relief", RequesterID: requesterID,
	}
}

func TestRequest_pendingForSupervisedAgent(t *testing.T) {
	store, audit, svc := fixture()
	ctx := context.Background()

	red, notice, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if red.Status != models.ReductionPending || notice != nil {
		t.Fatalf("expected a PENDING row and an untouched notice, got status=%s notice=%v", red.Status, notice)
	}
	if !red.PreviousTotal.Equal(d("70000")) || !red.NewTotal.Equal(d("65000")) {
		t.Fatalf("snapshot totals wrong: prev=%s new=%s", red.PreviousTotal, red.NewTotal)
	}

	n, _ := store.NoticeByNumber(ctx, "AV-2025-000123")
	if !n.TotalAmount.Equal(d("70000")) {
		t.Fatalf("pending request must not change the notice, total=%s", n.TotalAmount)
	}
	if len(audit.actions) != 1 || audit.actions[0] != auditlog.ActionReductionRequested {
		t.Fatalf("expected NOTICE_REDUCTION_REQUESTED, got %v", audit.actions)
	}
}

func TestRequest_autoAppliesForTopLevelAdmin(t *testing.T) {
	store, audit, svc := fixture()
	ctx := context.Background()

	red, notice, err := svc.Request(ctx, request("5000", adminID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if red.Status != models.ReductionApproved {
		t.Fatalf("expected immediate APPROVED, got %s", red.Status)
	}
	if red.ReviewedByID == nil || *red.ReviewedByID != adminID {
		t.Fatalf("auto-applied reduction must record the requester as reviewer")
	}
	if !notice.TotalAmount.Equal(d("65000")) || notice.Status != models.NoticePartial {
		t.Fatalf("got total=%s status=%s", notice.TotalAmount, notice.Status)
	}

	n, _ := store.NoticeByNumber(ctx, "AV-2025-000123")
	if !n.TotalAmount.Equal(d("65000")) {
		t.Fatalf("notice not persisted, total=%s", n.TotalAmount)
	}
	if len(audit.actions) != 1 || audit.actions[0] != auditlog.ActionReductionApplied {
		t.Fatalf("expected NOTICE_REDUCTION_APPLIED, got %v", audit.actions)
	}
}

func TestRequest_reductionToPaidBoundaryClosesNotice(t *testing.T) {
	_, _, svc := fixture()

	// 70000 owed, 15000 paid: reducing by the full remainder settles it.
	_, notice, err := svc.Request(context.Background(), request("55000", adminID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notice.Status != models.NoticePaid || !notice.TotalAmount.Equal(d("15000")) {
		t.Fatalf("expected PAID at 15000, got %s at %s", notice.Status, notice.TotalAmount)
	}
}

func TestRequest_rejectsBelowPaidFloor(t *testing.T) {
	store, _, svc := fixture()
	store.notices["nt-1"].AmountPaid = d("70000")
	store.notices["nt-1"].Status = models.NoticePaid

	_, _, err := svc.Request(context.Background(), request("5000", agentID))
	if !apperr.Is(err, apperr.KindConflict, apperr.ReasonBelowPaidAmount) {
		t.Fatalf("expected below-paid-amount conflict, got %v", err)
	}
	if len(store.reductions) != 0 {
		t.Fatalf("rejected request must not create a row")
	}
}

func TestRequest_rejectsReductionLargerThanTotal(t *testing.T) {
	_, _, svc := fixture()

	_, _, err := svc.Request(context.Background(), request("80000", adminID))
	if !apperr.Is(err, apperr.KindConflict, apperr.ReasonReductionTooLarge) {
		t.Fatalf("expected reduction-too-large conflict, got %v", err)
	}
}

func TestRequest_orphanAgentDenied(t *testing.T) {
	_, _, svc := fixture()

	_, _, err := svc.Request(context.Background(), request("5000", orphanID))
	if !apperr.Is(err, apperr.KindAuth, apperr.ReasonAccessDenied) {
		t.Fatalf("expected access denied for agent without supervisor, got %v", err)
	}
}

func TestRequest_validation(t *testing.T) {
	_, _, svc := fixture()
	ctx := context.Background()

	for _, amount := range []string{"abc", "0", "-5"} {
		if _, _, err := svc.Request(ctx, request(amount, agentID)); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("amount %q: expected validation error, got %v", amount, err)
		}
	}

	in := request("5000", agentID)
	in.Reason = "   "
	if _, _, err := svc.Request(ctx, in); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("blank reason: expected validation error, got %v", err)
	}
}

func TestApprove_appliesAndRecordsReviewer(t *testing.T) {
	store, audit, svc := fixture()
	ctx := context.Background()

	red, _, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	note := "justified"
	notice, err := svc.Approve(ctx, red.ID, supervisorID, &note)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !notice.TotalAmount.Equal(d("65000")) {
		t.Fatalf("expected 65000 after approval, got %s", notice.TotalAmount)
	}

	stored, _ := store.ReductionByID(ctx, red.ID)
	if stored.Status != models.ReductionApproved || stored.ReviewedByID == nil || *stored.ReviewedByID != supervisorID {
		t.Fatalf("row not finalized: %+v", stored)
	}
	want := []string{auditlog.ActionReductionRequested, auditlog.ActionReductionApproved}
	if len(audit.actions) != 2 || audit.actions[0] != want[0] || audit.actions[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, audit.actions)
	}
}

func TestApprove_staleWhenPaymentsLandedMeanwhile(t *testing.T) {
	store, _, svc := fixture()
	ctx := context.Background()

	red, _, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// A payment settles the notice while the request sits in the queue.
	store.mu.Lock()
	store.notices["nt-1"].AmountPaid = d("70000")
	store.notices["nt-1"].Status = models.NoticePaid
	store.mu.Unlock()

	_, err = svc.Approve(ctx, red.ID, supervisorID, nil)
	if !apperr.Is(err, apperr.KindConflict, apperr.ReasonStaleState) {
		t.Fatalf("expected stale-state conflict, got %v", err)
	}

	stored, _ := store.ReductionByID(ctx, red.ID)
	if stored.Status != models.ReductionPending {
		t.Fatalf("failed approval must leave the row PENDING, got %s", stored.Status)
	}
	n, _ := store.NoticeByNumber(ctx, "AV-2025-000123")
	if !n.TotalAmount.Equal(d("70000")) {
		t.Fatalf("notice must be untouched, total=%s", n.TotalAmount)
	}
}

func TestApprove_onlyDirectSupervisor(t *testing.T) {
	_, _, svc := fixture()
	ctx := context.Background()

	red, _, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := svc.Approve(ctx, red.ID, strangerID, nil); !apperr.Is(err, apperr.KindAuth, apperr.ReasonAccessDenied) {
		t.Fatalf("expected access denied for non-supervisor admin, got %v", err)
	}
	if _, err := svc.Approve(ctx, red.ID, agentID, nil); !apperr.Is(err, apperr.KindAuth, apperr.ReasonAccessDenied) {
		t.Fatalf("expected access denied for the requester, got %v", err)
	}
}

func TestApprove_secondDecisionAlreadyProcessed(t *testing.T) {
	_, _, svc := fixture()
	ctx := context.Background()

	red, _, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Approve(ctx, red.ID, supervisorID, nil); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	_, err = svc.Approve(ctx, red.ID, supervisorID, nil)
	if !apperr.Is(err, apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed) {
		t.Fatalf("expected already-processed, got %v", err)
	}
	if err := svc.Reject(ctx, red.ID, supervisorID, nil); !apperr.Is(err, apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed) {
		t.Fatalf("expected already-processed on reject after approve, got %v", err)
	}
}

func TestReject_leavesNoticeUntouched(t *testing.T) {
	store, audit, svc := fixture()
	ctx := context.Background()

	red, _, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	note := "insufficient justification"
	if err := svc.Reject(ctx, red.ID, supervisorID, &note); err != nil {
		t.Fatalf("reject: %v", err)
	}

	stored, _ := store.ReductionByID(ctx, red.ID)
	if stored.Status != models.ReductionRejected || stored.ReviewNote == nil || *stored.ReviewNote != note {
		t.Fatalf("row not finalized: %+v", stored)
	}
	n, _ := store.NoticeByNumber(ctx, "AV-2025-000123")
	if !n.TotalAmount.Equal(d("70000")) {
		t.Fatalf("reject must not touch the notice, total=%s", n.TotalAmount)
	}
	if audit.actions[len(audit.actions)-1] != auditlog.ActionReductionRejected {
		t.Fatalf("expected NOTICE_REDUCTION_REJECTED, got %v", audit.actions)
	}
}

func TestPendingForReviewer_inbox(t *testing.T) {
	_, _, svc := fixture()
	ctx := context.Background()

	red, _, err := svc.Request(ctx, request("5000", agentID))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	inbox, err := svc.PendingForReviewer(ctx, supervisorID)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != red.ID {
		t.Fatalf("expected the agent's request in the supervisor's inbox, got %v", inbox)
	}

	other, err := svc.PendingForReviewer(ctx, strangerID)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("stranger's inbox should be empty, got %v", other)
	}
}

func TestApprove_unknownReduction(t *testing.T) {
	_, _, svc := fixture()

	_, err := svc.Approve(context.Background(), "missing", supervisorID, nil)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
