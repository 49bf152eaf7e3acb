package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canto-lessons/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// pageWindow returns the slice bounds for the requested page of total items.
// Without page or limit parameters the whole list is returned and pagination is nil.
func pageWindow(c *gin.Context, total int) (int, int, *models.Pagination) {
	rawPage, hasPage := c.GetQuery("page")
	rawLimit, hasLimit := c.GetQuery("limit")
	if !hasPage && !hasLimit {
		return 0, total, nil
	}
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(rawLimit)
	if err != nil || size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end, &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
