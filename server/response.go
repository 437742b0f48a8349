package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes surfaced in the response envelope.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeNotFound    = "NOT_FOUND"
	CodeTranslation = "TRANSLATION_FAILED"
	CodeInternal    = "INTERNAL_ERROR"
)

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorInfo `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func respondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, envelope{Success: false, Error: &errorInfo{Code: code, Message: message}})
}
