package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/clusterkeys/internal/application/dto"
)

func traceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SendSuccess writes a success envelope with status 200.
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.SuccessResponse(data, traceID(c)))
}

// SendError maps err to its HTTP status and writes an error envelope.
func SendError(c *gin.Context, err error) {
	status, body := dto.ErrorResponse(err, traceID(c))
	c.AbortWithStatusJSON(status, body)
}
