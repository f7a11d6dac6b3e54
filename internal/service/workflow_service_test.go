package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/internal/repository"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type mockFormRepo struct {
	forms     map[int64]*models.FormDetail
	kpis      map[int64][]models.KPIItem
	softs     map[int64][]models.SoftSkillRating
	resps     map[int64][]models.Responsibility
	responses map[int64][]models.ResponseDetail

	savedKPIs       []models.KPIItem
	savedSoftScores map[string]int
	savedResps      []models.Responsibility
	statusUpdates   []models.FormStatus
	scores          struct {
		emp, mgr, final *decimal.Decimal
		calls           int
	}
	materialized   int
	versionFailure bool
}

func newMockFormRepo() *mockFormRepo {
	return &mockFormRepo{
		forms:     map[int64]*models.FormDetail{},
		kpis:      map[int64][]models.KPIItem{},
		softs:     map[int64][]models.SoftSkillRating{},
		resps:     map[int64][]models.Responsibility{},
		responses: map[int64][]models.ResponseDetail{},
	}
}

func (m *mockFormRepo) FindDetail(ctx context.Context, id int64) (*models.FormDetail, error) {
	if f, ok := m.forms[id]; ok {
		return f, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFormRepo) ListByEmployee(ctx context.Context, employeeID int64) ([]models.FormDetail, error) {
	var out []models.FormDetail
	for _, f := range m.forms {
		if f.EmployeeID == employeeID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFormRepo) ListAllDetails(ctx context.Context) ([]models.FormDetail, error) {
	var out []models.FormDetail
	for _, f := range m.forms {
		out = append(out, *f)
	}
	return out, nil
}

func (m *mockFormRepo) ListDetailsByStatus(ctx context.Context, statuses ...models.FormStatus) ([]models.FormDetail, error) {
	want := map[models.FormStatus]struct{}{}
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	var out []models.FormDetail
	for _, f := range m.forms {
		if _, ok := want[f.Status]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFormRepo) UpdateStatus(ctx context.Context, id int64, status models.FormStatus, rowVersion int64) error {
	if m.versionFailure {
		return repository.ErrVersionConflict
	}
	f, ok := m.forms[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.Status = status
	f.RowVersion++
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockFormRepo) UpdateScores(ctx context.Context, id int64, emp, mgr, final *decimal.Decimal) error {
	m.scores.emp, m.scores.mgr, m.scores.final = emp, mgr, final
	m.scores.calls++
	return nil
}

func (m *mockFormRepo) ReplaceSelfEvaluation(ctx context.Context, formID int64, rows []models.Responsibility, comments *string, rowVersion int64) error {
	if m.versionFailure {
		return repository.ErrVersionConflict
	}
	m.savedResps = rows
	return nil
}

func (m *mockFormRepo) ReplaceManagerReview(ctx context.Context, formID int64, kpis []models.KPIItem, softScores map[string]int, comments *string, rowVersion int64) error {
	if m.versionFailure {
		return repository.ErrVersionConflict
	}
	m.savedKPIs = kpis
	m.savedSoftScores = softScores
	m.kpis[formID] = kpis
	return nil
}

func (m *mockFormRepo) UpdateHRReview(ctx context.Context, formID int64, status models.FormStatus, comments *string, rowVersion int64) error {
	if m.versionFailure {
		return repository.ErrVersionConflict
	}
	f, ok := m.forms[formID]
	if !ok {
		return sql.ErrNoRows
	}
	f.Status = status
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockFormRepo) AppendCEOComment(ctx context.Context, formID int64, comment string, rowVersion int64) error {
	if m.versionFailure {
		return repository.ErrVersionConflict
	}
	f, ok := m.forms[formID]
	if !ok {
		return sql.ErrNoRows
	}
	f.CEOComments = &comment
	return nil
}

func (m *mockFormRepo) ListResponsibilities(ctx context.Context, formID int64) ([]models.Responsibility, error) {
	return m.resps[formID], nil
}

func (m *mockFormRepo) ListKPIs(ctx context.Context, formID int64) ([]models.KPIItem, error) {
	return m.kpis[formID], nil
}

func (m *mockFormRepo) ListSoftSkills(ctx context.Context, formID int64) ([]models.SoftSkillRating, error) {
	return m.softs[formID], nil
}

func (m *mockFormRepo) MaterializeSoftSkills(ctx context.Context, formID int64, attrs []models.SoftSkillAttribute, defaultScore int) (bool, error) {
	if len(m.softs[formID]) > 0 {
		return false, nil
	}
	m.materialized++
	for _, attr := range attrs {
		m.softs[formID] = append(m.softs[formID], models.SoftSkillRating{
			FormID: formID, AttributeKey: attr.Key, Attribute: attr.Name, Score: defaultScore,
		})
	}
	return true, nil
}

func (m *mockFormRepo) ListResponses(ctx context.Context, formID int64) ([]models.ResponseDetail, error) {
	return m.responses[formID], nil
}

func (m *mockFormRepo) UpdateSelfResponses(ctx context.Context, formID int64, responses []models.Response) error {
	return nil
}

type mockVisibility struct {
	visibleEmployeeIDs map[int64]struct{}
}

func (m *mockVisibility) VisibleForms(ctx context.Context, target models.Employee, forms []models.FormDetail) ([]models.FormDetail, error) {
	var out []models.FormDetail
	for _, f := range forms {
		if _, ok := m.visibleEmployeeIDs[f.EmployeeID]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

type mockAuditor struct {
	entries []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func ownerAuthority(employeeID int64) models.AuthorityContext {
	return models.AuthorityContext{Employee: models.Employee{ID: employeeID}, Role: models.RoleEmployee}
}

func managerAuthority(employeeID int64) models.AuthorityContext {
	a := ownerAuthority(employeeID)
	a.Manager = true
	return a
}

func newWorkflowFixture(status models.FormStatus) (*WorkflowService, *mockFormRepo, *mockAuditor) {
	repo := newMockFormRepo()
	repo.forms[1] = &models.FormDetail{
		Form: models.Form{ID: 1, EmployeeID: 10, CycleID: 1, Status: status, RowVersion: 1},
	}
	visibility := &mockVisibility{visibleEmployeeIDs: map[int64]struct{}{10: {}}}
	auditor := &mockAuditor{}
	return NewWorkflowService(repo, visibility, auditor, nil, zap.NewNop()), repo, auditor
}

func TestSaveSelfEvaluation_DropsBlankRowsAndClamps(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusDraft)

	err := svc.SaveSelfEvaluation(context.Background(), ownerAuthority(10), 1, SaveSelfEvaluationRequest{
		Responsibilities: []ResponsibilityInput{
			{Title: "Site supervision", AchievementPercent: 120},
			{Title: "   ", AchievementPercent: 50},
			{Title: "Vendor coordination", AchievementPercent: -5},
		},
		RowVersion: 1,
	})
	require.NoError(t, err)
	require.Len(t, repo.savedResps, 2)
	assert.Equal(t, 100, repo.savedResps[0].AchievementPercent)
	assert.Equal(t, 0, repo.savedResps[1].AchievementPercent)
}

func TestSaveSelfEvaluation_OnlyOwnerAndOnlyDraft(t *testing.T) {
	svc, _, _ := newWorkflowFixture(models.StatusDraft)
	req := SaveSelfEvaluationRequest{Responsibilities: []ResponsibilityInput{{Title: "x"}}, RowVersion: 1}

	err := svc.SaveSelfEvaluation(context.Background(), ownerAuthority(99), 1, req)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	svc, _, _ = newWorkflowFixture(models.StatusSubmitted)
	err = svc.SaveSelfEvaluation(context.Background(), ownerAuthority(10), 1, req)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestSubmitSelfEvaluation(t *testing.T) {
	svc, repo, auditor := newWorkflowFixture(models.StatusDraft)

	err := svc.SubmitSelfEvaluation(context.Background(), ownerAuthority(10), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, repo.forms[1].Status)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, models.AuditActionFormTransition, auditor.entries[0].Action)
}

func TestSubmitSelfEvaluation_RejectsAfterReview(t *testing.T) {
	svc, _, _ := newWorkflowFixture(models.StatusMgrReviewed)
	err := svc.SubmitSelfEvaluation(context.Background(), ownerAuthority(10), 1, 1)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestOpenManagerReview_MaterializesOnceAndPadsKPIs(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusSubmitted)

	view, err := svc.OpenManagerReview(context.Background(), managerAuthority(20), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.materialized)
	assert.Len(t, view.SoftSkills, len(models.SoftSkillCatalog))
	for _, s := range view.SoftSkills {
		assert.Equal(t, models.DefaultSoftSkillScore, s.Score)
	}
	assert.Len(t, view.KPIs, models.KPIRowCount)

	// Second open is idempotent.
	_, err = svc.OpenManagerReview(context.Background(), managerAuthority(20), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.materialized)
}

func TestSaveManagerReview_NonVisibleManagerRejectedOnDraft(t *testing.T) {
	// Authorization must fail before any workflow state leaks, even on a
	// form still in draft.
	repo := newMockFormRepo()
	repo.forms[1] = &models.FormDetail{Form: models.Form{ID: 1, EmployeeID: 10, Status: models.StatusDraft, RowVersion: 1}}
	svc := NewWorkflowService(repo, &mockVisibility{visibleEmployeeIDs: map[int64]struct{}{}}, &mockAuditor{}, nil, zap.NewNop())

	err := svc.SaveManagerReview(context.Background(), managerAuthority(20), 1, SaveManagerReviewRequest{RowVersion: 1})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSaveManagerReview_BlankRowDropAsymmetry(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusSubmitted)
	actual := "met target"

	// Seven rows in, two valid: exactly those two persist, never padded.
	err := svc.SaveManagerReview(context.Background(), managerAuthority(20), 1, SaveManagerReviewRequest{
		KPIs: []KPIInput{
			{Description: "Delivery", ActualPerformance: &actual, Score: 90},
			{Description: "  ", ActualPerformance: &actual, Score: 50},
			{Description: "Quality", ActualPerformance: nil, Score: 50},
			{Description: "Cost control", ActualPerformance: &actual, Score: 80},
			{Description: "", Score: 10},
			{Description: "", Score: 10},
			{Description: "", Score: 10},
		},
		RowVersion: 1,
	})
	require.NoError(t, err)
	assert.Len(t, repo.savedKPIs, 2)
}

func TestSaveManagerReview_TruncatesToFiveRows(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusSubmitted)
	actual := "done"

	var inputs []KPIInput
	for i := 0; i < 7; i++ {
		inputs = append(inputs, KPIInput{Description: "KPI", ActualPerformance: &actual, Score: 200})
	}
	err := svc.SaveManagerReview(context.Background(), managerAuthority(20), 1, SaveManagerReviewRequest{KPIs: inputs, RowVersion: 1})
	require.NoError(t, err)
	require.Len(t, repo.savedKPIs, models.KPIRowCount)
	for _, k := range repo.savedKPIs {
		assert.Equal(t, 100, k.Score)
	}
}

func TestSaveManagerReview_SubmitScoresAndTransitions(t *testing.T) {
	svc, repo, auditor := newWorkflowFixture(models.StatusSubmitted)
	actual := "ok"
	repo.softs[1] = []models.SoftSkillRating{{AttributeKey: "punctuality", Score: 5}}

	err := svc.SaveManagerReview(context.Background(), managerAuthority(20), 1, SaveManagerReviewRequest{
		KPIs:       []KPIInput{{Description: "Delivery", ActualPerformance: &actual, Score: 90}},
		SoftSkills: map[string]int{"punctuality": 8},
		RowVersion: 1,
		Submit:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMgrReviewed, repo.forms[1].Status)
	require.NotNil(t, repo.scores.mgr)
	assert.Nil(t, repo.scores.emp)
	assert.True(t, repo.scores.mgr.Equal(*repo.scores.final))
	require.Len(t, auditor.entries, 1)
}

func TestSaveManagerReview_SoftScoresClamped(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusSubmitted)

	err := svc.SaveManagerReview(context.Background(), managerAuthority(20), 1, SaveManagerReviewRequest{
		SoftSkills: map[string]int{"punctuality": 15, "attitude": 0},
		RowVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, repo.savedSoftScores["punctuality"])
	assert.Equal(t, 1, repo.savedSoftScores["attitude"])
}

func TestCompute_LegacyFallbackWhenNoNewRows(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusSubmitted)
	repo.responses[1] = []models.ResponseDetail{
		legacyResponse(2, intPtr(4), nil),
		legacyResponse(2, intPtr(5), nil),
		legacyResponse(1, intPtr(3), nil),
		legacyResponse(1, nil, nil),
	}

	require.NoError(t, svc.Compute(context.Background(), 1))
	require.NotNil(t, repo.scores.emp)
	assert.Equal(t, "4.2", repo.scores.emp.String())
	assert.Equal(t, "0", repo.scores.mgr.String())
	assert.Equal(t, "2.1", repo.scores.final.String())
}

func TestCompute_NoRowsAtAllScoresZero(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusSubmitted)
	require.NoError(t, svc.Compute(context.Background(), 1))
	require.NotNil(t, repo.scores.final)
	assert.True(t, repo.scores.final.IsZero())
}

func TestHRReview(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusMgrReviewed)
	hr := models.AuthorityContext{Employee: models.Employee{ID: 30}, Role: models.RoleEmployee, HR: true}

	err := svc.HRReview(context.Background(), hr, 1, HRReviewRequest{RowVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusHRReviewed, repo.forms[1].Status)
}

func TestHRReview_RequiresCapabilityAndState(t *testing.T) {
	svc, _, _ := newWorkflowFixture(models.StatusMgrReviewed)
	err := svc.HRReview(context.Background(), managerAuthority(20), 1, HRReviewRequest{RowVersion: 1})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	svc, _, _ = newWorkflowFixture(models.StatusSubmitted)
	hr := models.AuthorityContext{Employee: models.Employee{ID: 30}, HR: true}
	err = svc.HRReview(context.Background(), hr, 1, HRReviewRequest{RowVersion: 1})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestCEOComment_AppendsWithoutStatusChange(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusHRReviewed)
	ceo := models.AuthorityContext{Employee: models.Employee{ID: 40}, CEO: true}

	err := svc.CEOComment(context.Background(), ceo, 1, CEOCommentRequest{Comment: "Good progress", RowVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusHRReviewed, repo.forms[1].Status)
	require.NotNil(t, repo.forms[1].CEOComments)
}

func TestFinalize_AdminOnly(t *testing.T) {
	svc, _, _ := newWorkflowFixture(models.StatusHRReviewed)
	err := svc.Finalize(context.Background(), managerAuthority(20), 1, FinalizeFormRequest{Status: models.StatusApproved, RowVersion: 1})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	svc, repo, _ := newWorkflowFixture(models.StatusHRReviewed)
	admin := models.AuthorityContext{Employee: models.Employee{ID: 1}, Role: models.RoleAdmin}
	require.NoError(t, svc.Finalize(context.Background(), admin, 1, FinalizeFormRequest{Status: models.StatusApproved, RowVersion: 1}))
	assert.Equal(t, models.StatusApproved, repo.forms[1].Status)
}

func TestFinalize_ForcedClosureFromAnyState(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusDraft)
	admin := models.AuthorityContext{Employee: models.Employee{ID: 1}, Role: models.RoleAdmin}

	require.NoError(t, svc.Finalize(context.Background(), admin, 1, FinalizeFormRequest{Status: models.StatusFinalized, RowVersion: 1}))
	assert.Equal(t, models.StatusFinalized, repo.forms[1].Status)

	svc, _, _ = newWorkflowFixture(models.StatusDraft)
	err := svc.Finalize(context.Background(), admin, 1, FinalizeFormRequest{Status: models.StatusApproved, RowVersion: 1})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestVersionConflictSurfacesAsConflict(t *testing.T) {
	svc, repo, _ := newWorkflowFixture(models.StatusDraft)
	repo.versionFailure = true

	err := svc.SubmitSelfEvaluation(context.Background(), ownerAuthority(10), 1, 1)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGetForm_AccessMatrix(t *testing.T) {
	svc, _, _ := newWorkflowFixture(models.StatusDraft)

	_, err := svc.GetForm(context.Background(), ownerAuthority(10), 1)
	assert.NoError(t, err)

	_, err = svc.GetForm(context.Background(), managerAuthority(20), 1)
	assert.NoError(t, err)

	_, err = svc.GetForm(context.Background(), ownerAuthority(99), 1)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestListReviewInbox_FiltersByVisibility(t *testing.T) {
	repo := newMockFormRepo()
	repo.forms[1] = &models.FormDetail{Form: models.Form{ID: 1, EmployeeID: 10, Status: models.StatusSubmitted}}
	repo.forms[2] = &models.FormDetail{Form: models.Form{ID: 2, EmployeeID: 11, Status: models.StatusSubmitted}}
	svc := NewWorkflowService(repo, &mockVisibility{visibleEmployeeIDs: map[int64]struct{}{10: {}}}, &mockAuditor{}, nil, zap.NewNop())

	inbox, err := svc.ListReviewInbox(context.Background(), managerAuthority(20))
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, int64(1), inbox[0].ID)

	_, err = svc.ListReviewInbox(context.Background(), ownerAuthority(10))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
