package rules

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reginor/backend-reginor/internal/pricing"
	"github.com/reginor/backend-reginor/internal/tenant"
)

type fakeAdmin struct {
	created []pricing.Rule
	dupe    bool
}

func (f *fakeAdmin) List(context.Context, string) ([]pricing.Rule, error) { return f.created, nil }

func (f *fakeAdmin) Get(context.Context, string, uuid.UUID) (pricing.Rule, error) {
	return pricing.Rule{}, ErrNotFound
}

func (f *fakeAdmin) Create(_ context.Context, _ string, r pricing.Rule) (pricing.Rule, error) {
	if f.dupe {
		return pricing.Rule{}, ErrDuplicateCode
	}
	r.ID = uuid.New()
	f.created = append(f.created, r)
	return r, nil
}

func (f *fakeAdmin) Update(_ context.Context, _ string, r pricing.Rule) (pricing.Rule, error) {
	return r, nil
}

func (f *fakeAdmin) SetEnabled(context.Context, string, uuid.UUID, bool) error { return nil }
func (f *fakeAdmin) Delete(context.Context, string, uuid.UUID) error           { return nil }

func postRule(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rules", strings.NewReader(body))
	req = req.WithContext(tenant.WithOrg(req.Context(), "oslo-swing"))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreateRuleValidatesConfig(t *testing.T) {
	h := &Handler{Store: &fakeAdmin{}, Validate: validator.New()}

	rec := postRule(t, h, `{
		"code": "MEDLEM10",
		"name": "Medlemsrabatt",
		"kind": "MEMBERSHIP_TIER_PERCENT",
		"priority": 10,
		"enabled": true,
		"config": {"discountPercent": 150}
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRuleStoresDecodedConfig(t *testing.T) {
	store := &fakeAdmin{}
	h := &Handler{Store: store, Validate: validator.New()}

	rec := postRule(t, h, `{
		"code": "KURS2",
		"name": "Flerkursrabatt",
		"kind": "MULTI_COURSE_TIERED",
		"priority": 20,
		"enabled": true,
		"config": {"tiers": [{"count": 2, "discountCents": 10000}]}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.created, 1)
	require.NotNil(t, store.created[0].Config.MultiCourse)
	require.Equal(t, 2, store.created[0].Config.MultiCourse.Tiers[0].Count)

	var body struct {
		Data ruleResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "KURS2", body.Data.Code)
	require.JSONEq(t, `{"tiers": [{"count": 2, "discountCents": 10000}]}`, string(body.Data.Config))
}

func TestCreateRuleDuplicateCode(t *testing.T) {
	h := &Handler{Store: &fakeAdmin{dupe: true}, Validate: validator.New()}

	rec := postRule(t, h, `{
		"code": "MEDLEM10",
		"name": "Medlemsrabatt",
		"kind": "MEMBERSHIP_TIER_PERCENT",
		"enabled": true,
		"config": {"discountPercent": 10}
	}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}
