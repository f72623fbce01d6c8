package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a validated page/limit pair. Offsets are computed at the store,
// which receives the pair as-is.
type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string, falling back to defaults
// and clamping limit so a single request cannot drag the whole table.
func Parse(c *gin.Context) Params {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}
