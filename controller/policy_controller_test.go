// controller/policy_controller_test.go
package controller_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"

	"github.com/arbiterhq/arbiter/controller"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/middleware"
	"github.com/arbiterhq/arbiter/model"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
	"github.com/arbiterhq/arbiter/test/mock"
)

func TestPolicyController(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()

	policyService := new(mock.MockPolicyService)
	policyController := controller.NewPolicyController(policyService)
	router := setupRouter()
	api := router.Group("/api/v1")
	api.Use(middleware.TenantRequired())
	policyController.RegisterRoutes(api)

	t.Run("CreatePolicy_Success", func(t *testing.T) {
		policyService.On("CreatePolicy", testify_mock.Anything, testify_mock.MatchedBy(func(p model.PermissionPolicy) bool {
			return p.TenantID == "t1" && p.Name == "support-access"
		})).Return(&model.PermissionPolicy{ID: "p1", TenantID: "t1", Name: "support-access"}, nil).Once()

		body := strings.NewReader(`{"name":"support-access"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/policies", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("CreatePolicy_Conflict", func(t *testing.T) {
		policyService.On("CreatePolicy", testify_mock.Anything, testify_mock.Anything).
			Return(nil, arbiter_errors.ErrPolicyConflict).Once()

		body := strings.NewReader(`{"name":"support-access"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/policies", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("GetPolicy_NotFound", func(t *testing.T) {
		policyService.On("GetPolicy", testify_mock.Anything, "t1", "missing").
			Return(nil, arbiter_errors.ErrPolicyNotFound).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/policies/missing", nil)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("PublishVersion_AlreadyPublished", func(t *testing.T) {
		policyService.On("PublishVersion", testify_mock.Anything, "t1", "v1").
			Return(nil, arbiter_errors.ErrVersionPublished).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/policy-versions/v1/publish", nil)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("AddRule_PublishedVersionImmutable", func(t *testing.T) {
		policyService.On("AddRule", testify_mock.Anything, testify_mock.Anything).
			Return(nil, arbiter_errors.ErrVersionPublished).Once()

		body := strings.NewReader(`{"scope_type":"entity","scope_key":"ticket","subject_type":"kc_role","subject_key":"agent","effect":"allow","priority":10,"is_active":true,"operations":[{"operation":"read"}]}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/policy-versions/v1/rules", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CompileVersion_Success", func(t *testing.T) {
		policyService.On("Compile", testify_mock.Anything, "t1", "v1").
			Return(&pdp_model.CompiledArtifact{
				TenantID:        "t1",
				PolicyVersionID: "v1",
				Hash:            "abc123",
				RuleCount:       4,
			}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/policy-versions/v1/compile", nil)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "abc123")
	})

	t.Run("CompileVersion_DraftRejected", func(t *testing.T) {
		policyService.On("Compile", testify_mock.Anything, "t1", "draft").
			Return(nil, arbiter_errors.ErrDraftNotCompilable).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/policy-versions/draft/compile", nil)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CreateEntityPolicy_Invalid", func(t *testing.T) {
		policyService.On("CreateEntityPolicy", testify_mock.Anything, testify_mock.Anything).
			Return(nil, arbiter_errors.ErrInvalidPolicyData).Once()

		body := strings.NewReader(`{"access_mode":"sometimes"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/entity-policies", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	policyService.AssertExpectations(t)
}
