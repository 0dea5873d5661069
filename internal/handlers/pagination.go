package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func buildPaginationMeta(page, limit, total int) models.PaginationMeta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return models.PaginationMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// paginate reads page and limit from the query string and returns the
// matching window of items.
func paginate[T any](c *fiber.Ctx, items []T) ([]T, models.PaginationMeta) {
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if page-1 > len(items)/limit {
		return items[len(items):], buildPaginationMeta(page, limit, len(items))
	}
	start := min((page-1)*limit, len(items))
	end := min(start+limit, len(items))
	return items[start:end], buildPaginationMeta(page, limit, len(items))
}
