package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page is a keyset page request over created_at, newest first.
type Page struct {
	Limit  int
	Before *time.Time
}

type pageQuery struct {
	Limit  string `form:"limit"`
	Before string `form:"before"`
}

// PageResponse wraps one page of rows. NextCursor is the created_at of the
// last row and is only set when more rows exist.
type PageResponse[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ParsePage reads ?limit= and ?before=. Unusable values fall back to the
// defaults.
func ParsePage(c *gin.Context) Page {
	p := Page{Limit: DefaultPageSize}

	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return p
	}
	if n, err := strconv.Atoi(q.Limit); err == nil && n > 0 {
		p.Limit = min(n, MaxPageSize)
	}
	if q.Before != "" {
		if t, err := time.Parse(time.RFC3339Nano, q.Before); err == nil {
			p.Before = &t
		}
	}
	return p
}

func NewPageResponse[T any](rows []T, hasMore bool, createdAt func(T) time.Time) PageResponse[T] {
	if rows == nil {
		rows = []T{}
	}
	resp := PageResponse[T]{Data: rows, HasMore: hasMore}
	if hasMore && len(rows) > 0 {
		resp.NextCursor = createdAt(rows[len(rows)-1]).UTC().Format(time.RFC3339Nano)
	}
	return resp
}
