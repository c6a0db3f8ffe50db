package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/middleware"
	"github.com/iliyamo/patient-records/internal/service"
)

// UserHandler serves account management for administrators.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	if users == nil {
		panic("nil service passed to NewUserHandler")
	}
	return &UserHandler{users: users}
}

type updateUserReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	users, err := h.users.List(ctx, middleware.Token(c))
	if err != nil {
		return err
	}
	out := make([]userResp, 0, len(users))
	for i := range users {
		out = append(out, toUserResp(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.Get(ctx, middleware.Token(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// Update changes username and email of an account.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.UpdateAccountInfo(ctx, middleware.Token(c), id, req.Username, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

func (h *UserHandler) Activate(c echo.Context) error   { return h.setActive(c, true) }
func (h *UserHandler) Deactivate(c echo.Context) error { return h.setActive(c, false) }

func (h *UserHandler) setActive(c echo.Context, active bool) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.SetActive(ctx, middleware.Token(c), id, active)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
