package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alshaya00/Alshaya-sub002/pkg/auth"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
	"github.com/alshaya00/Alshaya-sub002/pkg/services"
)

// mockCandidateService returns canned candidate listings.
type mockCandidateService struct {
	result     *models.RollbackCandidates
	err        error
	lastFilter models.ChangeFilter
}

func (m *mockCandidateService) ListCandidates(ctx context.Context, actor models.Actor, filter models.ChangeFilter) (*models.RollbackCandidates, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

var _ services.CandidateService = (*mockCandidateService)(nil)

// mockRollbackService returns canned rollback results.
type mockRollbackService struct {
	result  *services.RollbackResult
	err     error
	lastReq services.RollbackRequest
	calls   int
}

func (m *mockRollbackService) Rollback(ctx context.Context, actor models.Actor, req services.RollbackRequest) (*services.RollbackResult, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

var _ services.RollbackService = (*mockRollbackService)(nil)

// mockMemberService returns canned members.
type mockMemberService struct {
	member  *models.Member
	members []*models.Member
	history []*models.ChangeRecord
	err     error

	lastUpdated *models.Member
	lastReason  string
}

func (m *mockMemberService) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.member, nil
}

func (m *mockMemberService) List(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members, nil
}

func (m *mockMemberService) Create(ctx context.Context, actor models.Actor, member *models.Member) (*models.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	member.ID = uuid.New()
	return member, nil
}

func (m *mockMemberService) Update(ctx context.Context, actor models.Actor, id uuid.UUID, updated *models.Member) (*models.Member, error) {
	m.lastUpdated = updated
	if m.err != nil {
		return nil, m.err
	}
	return updated, nil
}

func (m *mockMemberService) Delete(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) error {
	m.lastReason = reason
	return m.err
}

func (m *mockMemberService) History(ctx context.Context, id uuid.UUID, limit int) ([]*models.ChangeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

var _ services.MemberService = (*mockMemberService)(nil)

var testActorID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000010")

// authedRequest builds a request whose context carries admin claims, the way
// the auth middleware leaves them after token validation.
func authedRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testActorID.String()},
		Name:             "Noura",
		Roles:            []string{models.RoleAdmin},
	}
	return r.WithContext(auth.SetClaims(r.Context(), claims))
}
