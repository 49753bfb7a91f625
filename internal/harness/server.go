// Package harness runs a development-only HTTP server for exercising
// the payment gateway without the portal UI: create PIX charges, poll
// them and simulate provider confirmations against the sandbox.
package harness

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pulacatraca/internal/services/gateway"
	"pulacatraca/internal/status"
	"pulacatraca/services"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/shopspring/decimal"
)

type Server struct {
	echo     *echo.Echo
	srv      *http.Server
	payments *services.PaymentService
	sandbox  *gateway.Sandbox
}

func NewServer(payments *services.PaymentService, sandbox *gateway.Sandbox) *Server {
	e := echo.New()
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		payments: payments,
		sandbox:  sandbox,
	}

	e.POST("/harness/pix", s.createPix)
	e.GET("/harness/charge", s.checkCharge)
	e.POST("/harness/charge/pay", s.simulatePayment)

	return s
}

func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) createPix(c echo.Context) error {
	var req struct {
		Phone       string          `json:"phone"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	charge, err := s.payments.CreatePixCharge(c.Request().Context(), services.CreatePixRequest{
		OrganizerID: "harness",
		Phone:       req.Phone,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, charge)
}

func (s *Server) checkCharge(c echo.Context) error {
	chargeID := c.QueryParam("charge_id")
	if chargeID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "charge_id is required"})
	}

	charge, err := s.payments.CheckChargeStatus(c.Request().Context(), chargeID)
	if errors.Is(err, status.ErrChargeNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "charge not found"})
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, charge)
}

// simulatePayment marks a sandbox charge paid, which feeds the same
// notification path a real provider confirmation would.
func (s *Server) simulatePayment(c echo.Context) error {
	if s.sandbox == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "sandbox gateway not active"})
	}

	chargeID := c.QueryParam("charge_id")
	if chargeID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "charge_id is required"})
	}

	charge, err := s.sandbox.MarkPaid(chargeID)
	if errors.Is(err, status.ErrChargeNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "charge not found"})
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"charge_id": charge.ID,
		"status":    charge.Status,
	})
}
