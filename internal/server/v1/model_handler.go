package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/gateway"
)

type ModelHandler struct {
	service *gateway.Service
	logger  *zap.Logger
}

func NewModelHandler(service *gateway.Service, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{service: service, logger: logger}
}

// ListModels serves GET /v1/models. The listing is the union of the
// public aliases and the distinct backing models, so clients built
// against either naming scheme see their ids.
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.ListModels())
}
