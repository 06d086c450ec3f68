package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentspace/internal/app/dto"
	walletapp "rentspace/internal/app/handlers/wallet"
	"rentspace/internal/app/queries"
)

type WalletHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h WalletHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		busUnavailable(c)
		return
	}
	q := walletapp.HostWalletQuery{
		HostID:   strings.TrimSpace(c.Param("id")),
		Currency: c.Query("currency"),
	}
	result, err := queries.Ask[walletapp.HostWalletQuery, dto.WalletDTO](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, "wallet.host", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ WalletHTTP = WalletHandler{}
