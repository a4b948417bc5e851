package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mzansigig/gigwork-backend/internal/http/middleware"
	"github.com/mzansigig/gigwork-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	return r
}

func TestPaymentHandler_GetEscrow_Unauthorized(t *testing.T) {
	r := testRouter()
	handler := &PaymentHandler{svc: nil}
	r.GET("/gigs/:id/escrow", handler.GetEscrow)

	req, _ := http.NewRequest("GET", "/gigs/5c7a9171-38bb-4363-8e41-dc3e41908a43/escrow", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_ConfirmCompletion_Unauthorized(t *testing.T) {
	r := testRouter()
	handler := &PaymentHandler{svc: nil}
	r.POST("/gigs/:id/confirm", handler.ConfirmCompletion)

	req, _ := http.NewRequest("POST", "/gigs/5c7a9171-38bb-4363-8e41-dc3e41908a43/confirm", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_InitiateCheckout_InvalidGigID(t *testing.T) {
	r := testRouter()
	handler := &PaymentHandler{svc: nil}
	r.POST("/gigs/:id/checkout", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		handler.InitiateCheckout(c)
	})

	req, _ := http.NewRequest("POST", "/gigs/not-a-uuid/checkout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
