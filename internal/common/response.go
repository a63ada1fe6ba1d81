package common

import "github.com/gin-gonic/gin"

// OK writes the standard success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

// Created writes the success envelope with a 201 status.
func Created(c *gin.Context, data any) {
	c.JSON(201, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

// Fail writes the standard error envelope. code is an app-level error code,
// httpStatus the transport status.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailWithErrors writes the error envelope plus a detail list. Used by the
// NPC generation 422 path to surface the per-attempt diagnostics.
func FailWithErrors(c *gin.Context, httpStatus int, code int, msg string, errs []string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"errors":  errs,
		"data":    nil,
	})
}
