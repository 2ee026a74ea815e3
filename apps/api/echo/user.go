package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
)

type (
	TokenResponse struct {
		Token string `json:"token"`
	}

	userApi struct {
		conf *core.Config
	}
)

func registerUserAPI(g *echo.Group, conf *core.Config) {
	api := userApi{conf: conf}

	ug := g.Group("/users")
	ug.GET("/me", api.me)
	ug.POST("/token-refresh", api.refreshToken)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}
