// Package params parses numeric identifiers from gin path, query and header values.
package params

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrInvalidID is returned when a value is absent, non-numeric or not positive.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive int64 identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// PathID parses a positive int64 path parameter.
func PathID(c *gin.Context, name string) (int64, error) {
	return ParseID(c.Param(name))
}

// QueryID parses a positive int64 query parameter.
func QueryID(c *gin.Context, name string) (int64, error) {
	return ParseID(c.Query(name))
}

// HeaderID parses a positive int64 request header.
func HeaderID(c *gin.Context, name string) (int64, error) {
	return ParseID(c.GetHeader(name))
}
