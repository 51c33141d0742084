package http

import (
	"net/http"
	"strconv"
	"time"

	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"
)

const DateLayout = "2006-01-02"

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ParseDate accepts an ISO 8601 calendar date (2024-06-01) or a full RFC3339 timestamp
// and returns the UTC midnight of that day.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid date '" + value + "', expected YYYY-MM-DD")
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ExtractDateRange reads the check_in / check_out query parameters. Both must be
// present or both absent; ok is false when neither was supplied.
func ExtractDateRange(r *http.Request) (checkIn, checkOut time.Time, ok bool, err error) {
	query := r.URL.Query()
	inStr, outStr := query.Get("check_in"), query.Get("check_out")
	if inStr == "" && outStr == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if inStr == "" || outStr == "" {
		return time.Time{}, time.Time{}, false, apperrors.InvalidInput("both 'check_in' and 'check_out' are required")
	}
	if checkIn, err = ParseDate(inStr); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if checkOut, err = ParseDate(outStr); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return checkIn, checkOut, true, nil
}
