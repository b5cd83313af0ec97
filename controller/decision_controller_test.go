// controller/decision_controller_test.go
package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
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

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestDecisionController(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()

	accessService := new(mock.MockAccessService)
	decisionController := controller.NewDecisionController(accessService)
	router := setupRouter()
	api := router.Group("/api/v1")
	api.Use(middleware.TenantRequired())
	decisionController.RegisterRoutes(api)

	t.Run("Decide_Allow", func(t *testing.T) {
		accessService.On("Decide", testify_mock.Anything, testify_mock.MatchedBy(func(req pdp_model.AccessRequest) bool {
			return req.TenantID == "t1" && req.Operation == "read"
		})).Return(&pdp_model.Decision{Effect: model.EffectAllow, MatchedRuleID: "r1"}, nil).Once()

		body := strings.NewReader(`{"subject":{"principal_id":"u1","kind":"user"},"operation":"read","scope":{"entity_key":"ticket"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/decisions", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var decision pdp_model.Decision
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
		assert.Equal(t, model.EffectAllow, decision.Effect)
		assert.Equal(t, "r1", decision.MatchedRuleID)
	})

	t.Run("Decide_MissingTenantHeader", func(t *testing.T) {
		body := strings.NewReader(`{"subject":{"principal_id":"u1"},"operation":"read"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/decisions", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Decide_MissingOperation", func(t *testing.T) {
		accessService.On("Decide", testify_mock.Anything, testify_mock.Anything).
			Return(nil, arbiter_errors.ErrUnknownOperation).Once()

		body := strings.NewReader(`{"subject":{"principal_id":"u1"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/decisions", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MaskFields_Success", func(t *testing.T) {
		accessService.On("MaskFields", testify_mock.Anything, testify_mock.Anything).
			Return(map[string]pdp_model.MaskDecision{
				"ssn":  {Allowed: false, Strategy: model.MaskRedact, PolicyID: "fp1"},
				"name": {Allowed: true},
			}, nil).Once()

		body := strings.NewReader(`{"subject":{"principal_id":"u1"},"entity_key":"customer","field_paths":["ssn","name"],"action":"read"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/field-masks", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Fields map[string]pdp_model.MaskDecision `json:"fields"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Fields["ssn"].Allowed)
		assert.Equal(t, model.MaskRedact, response.Fields["ssn"].Strategy)
		assert.True(t, response.Fields["name"].Allowed)
	})

	t.Run("MaskFields_InvalidBody", func(t *testing.T) {
		body := strings.NewReader(`{not json`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/field-masks", body)
		req.Header.Set("X-Tenant-ID", "t1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	accessService.AssertExpectations(t)
}
