package prometheus

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct{}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
