package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// placeholder renders the n-th (1-based) bind parameter
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// attemptWhere builds the WHERE clause for filter.
func attemptWhere(filter AttemptFilter, ph placeholder) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.ChainID != 0 {
		args = append(args, int64(filter.ChainID))
		conds = append(conds, "chain_id = "+ph(len(args)))
	}
	if filter.Address != "" {
		args = append(args, strings.ToLower(filter.Address))
		conds = append(conds, "LOWER(address) = "+ph(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = "+ph(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// normalizePagination clamps the limit and decodes the offset cursor.
func normalizePagination(p PaginationParams) (limit, offset int, err error) {
	limit = p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if p.Cursor != "" {
		offset, err = strconv.Atoi(p.Cursor)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCursor, p.Cursor)
		}
	}
	return limit, offset, nil
}

// paginate trims the extra row fetched to detect more pages.
func paginate[T any](rows []T, limit, offset int) *PaginatedResult[T] {
	res := &PaginatedResult[T]{Data: rows}
	if len(rows) > limit {
		res.Data = rows[:limit]
		res.HasMore = true
		res.NextCursor = strconv.Itoa(offset + limit)
	}
	if res.Data == nil {
		res.Data = []T{}
	}
	return res
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
