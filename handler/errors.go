package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// opMessages is what the user sees for a failed remote call
var opMessages = map[model.Op]string{
	model.OpUpload:  model.MsgWorkflowFailed,
	model.OpAnalyze: model.MsgWorkflowFailed,
	model.OpStatus:  model.MsgWorkflowFailed,
	model.OpResult:  model.MsgResultFailed,
	model.OpReport:  model.MsgExportFailed,
	model.OpSuggest: model.MsgSuggestFailed,
}

// writeError maps a workflow error to a status and a localized message.
// fallback is used for errors outside the taxonomy.
func writeError(c *gin.Context, err error, fallback string) {
	status, msg := classify(err, fallback)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "error", err)
	} else {
		logger.Debug(c.Request.Context(), "request rejected", "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error, fallback string) (int, string) {
	var verr *model.ValidationError
	var terr *model.TransportError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &terr):
		if msg, ok := opMessages[terr.Op]; ok {
			return http.StatusBadGateway, msg
		}
		return http.StatusBadGateway, fallback
	case errors.Is(err, model.ErrBusy):
		return http.StatusConflict, model.MsgBusy
	case errors.Is(err, model.ErrExportInFlight):
		return http.StatusConflict, model.MsgExportInFlight
	case errors.Is(err, model.ErrNothingToRetry):
		return http.StatusConflict, model.MsgNothingToRetry
	case errors.Is(err, model.ErrNoDocument):
		return http.StatusNotFound, model.MsgNoDocument
	case errors.Is(err, model.ErrClosed):
		return http.StatusGone, model.MsgSessionClosed
	default:
		return http.StatusInternalServerError, fallback
	}
}
