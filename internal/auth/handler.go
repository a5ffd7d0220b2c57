package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/device"
	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/ledger"
	"github.com/panadol94/tipsmega-api/internal/otp"
	"github.com/panadol94/tipsmega-api/internal/phone"
)

// Handler exposes the account and ledger HTTP endpoints.
type Handler struct {
	service   *Service
	otp       *otp.Service
	ledger    ledger.Ledger
	ids       identity.Repository
	groupLink string
}

// NewHandler builds the auth HTTP handler.
func NewHandler(service *Service, codes *otp.Service, led ledger.Ledger,
	ids identity.Repository, groupLink string) *Handler {
	return &Handler{service: service, otp: codes, ledger: led, ids: ids, groupLink: groupLink}
}

type requestOTPRequest struct {
	Phone string `json:"phone"`
}

// RequestOTP issues a one-time code for a bound, member-gated phone.
func (h *Handler) RequestOTP(c *fiber.Ctx) error {
	var req requestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	canonical, err := phone.Normalize(req.Phone)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid phone")
	}

	ttl, err := h.otp.Request(c.UserContext(), canonical)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrNotBound):
			return c.Status(http.StatusNotFound).JSON(fiber.Map{
				"error":     "phone not linked",
				"joinGroup": h.groupLink,
			})
		case errors.Is(err, otp.ErrNotMember):
			return c.Status(http.StatusForbidden).JSON(fiber.Map{
				"error":     "join the group first",
				"joinGroup": h.groupLink,
			})
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"expiresIn": int(ttl.Seconds()),
	})
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
	RefCode  string `json:"refCode"`
}

// Register creates a verified account after OTP verification.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Register(c.UserContext(), RegisterInput{
		Phone:    req.Phone,
		Username: req.Username,
		Password: req.Password,
		Code:     req.OTP,
		RefCode:  req.RefCode,
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"phone":        res.Phone,
		"username":     res.Username,
		"referralCode": res.ReferralCode,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks credentials and returns a session token with the profile
// snapshot the client caches.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"token":        res.Token,
		"phone":        res.Phone,
		"username":     res.Username,
		"referralCode": res.ReferralCode,
		"bonusStars":   res.GrantedTotal,
		"bonusGranted": res.LegacyClaimed,
	})
}

type resetPasswordRequest struct {
	Phone       string `json:"phone"`
	NewPassword string `json:"newPassword"`
	OTP         string `json:"otp"`
}

// ResetPassword replaces the credentials after OTP verification.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	username, err := h.service.ResetPassword(c.UserContext(), req.Phone, req.NewPassword, req.OTP)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":       true,
		"username": username,
	})
}

type grantDeviceRequest struct {
	DeviceID string `json:"deviceId"`
}

// GrantDevice atomically moves the caller's pending credit onto the device.
func (h *Handler) GrantDevice(c *fiber.Ctx) error {
	var req grantDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.DeviceID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing deviceId")
	}

	res, err := h.ledger.Claim(c.UserContext(), sessionPhone(c), req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "account not found")
		case errors.Is(err, device.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "device not initialized")
		case errors.Is(err, ledger.ErrTxAborted):
			return fiber.NewError(http.StatusConflict, "claim conflicted, retry")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	msg := "No new stars"
	if res.Granted {
		msg = fmt.Sprintf("Claimed %d new stars!", res.Amount)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":         true,
		"granted":    res.Granted,
		"bonusStars": res.Amount,
		"stars":      res.Stars,
		"msg":        msg,
	})
}

// CheckPending reports the caller's ledger summary.
func (h *Handler) CheckPending(c *fiber.Ctx) error {
	sum, err := h.ledger.Summary(c.UserContext(), sessionPhone(c))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"pending":      sum.Pending,
		"totalBonus":   sum.GrantedTotal,
		"totalClaimed": sum.ClaimedTotal,
	})
}

// Me returns the caller's profile with live ledger figures.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, err := h.ids.GetByPhone(c.UserContext(), sessionPhone(c))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":                true,
		"username":          id.Username,
		"phone":             id.Phone,
		"referralCode":      id.ReferralCode,
		"referralCount":     id.ReferralCount,
		"pendingStars":      id.Pending(),
		"totalClaimedStars": id.ClaimedTotal,
	})
}

// sessionPhone reads the canonical phone set by the session middleware.
func sessionPhone(c *fiber.Ctx) string {
	p, _ := c.Locals("phone").(string)
	return p
}

func (h *Handler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, phone.ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, "invalid phone")
	case errors.Is(err, ErrUsernameTooShort), errors.Is(err, ErrWeakPassword):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrAlreadyRegistered):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, otp.ErrExpired), errors.Is(err, otp.ErrWrongCode), errors.Is(err, otp.ErrTooManyAttempts):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotVerified), errors.Is(err, ErrWrongPassword):
		return fiber.NewError(http.StatusForbidden, "invalid credentials")
	case errors.Is(err, identity.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
