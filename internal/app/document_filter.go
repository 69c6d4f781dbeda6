package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pdfshelf/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	bytesPerMB      = 1024 * 1024
	dateLayout      = "2006-01-02"
)

// UncategorizedSentinels select documents without a collection.
var UncategorizedSentinels = []string{"null", "uncategorized"}

var sortOptions = map[string]repository.DocumentSort{
	"-createdAt":    {Key: repository.SortCreatedAt, Desc: true},
	"createdAt":     {Key: repository.SortCreatedAt},
	"originalName":  {Key: repository.SortOriginalName},
	"-originalName": {Key: repository.SortOriginalName, Desc: true},
	"fileSize":      {Key: repository.SortFileSize},
	"-fileSize":     {Key: repository.SortFileSize, Desc: true},
	"pageCount":     {Key: repository.SortPageCount},
	"-pageCount":    {Key: repository.SortPageCount, Desc: true},
}

// DocumentFilter is the client-facing filter. Sizes are megabytes; dates are
// RFC3339 timestamps or YYYY-MM-DD days interpreted in UTC.
type DocumentFilter struct {
	Search     string
	Collection string
	Tags       []string
	DateFrom   string
	DateTo     string
	MinSizeMB  *float64
	MaxSizeMB  *float64
	MinPages   *int
	MaxPages   *int
	Sort       string
	Page       int
	Limit      int
}

// Normalize validates the filter and converts it to a repository query plus
// the effective page and limit.
func (f DocumentFilter) Normalize() (repository.DocumentQuery, int, int, error) {
	var q repository.DocumentQuery
	q.Search = strings.TrimSpace(f.Search)

	if c := strings.TrimSpace(f.Collection); c != "" {
		if isUncategorized(c) {
			q.Uncategorized = true
		} else {
			id, err := strconv.ParseUint(c, 10, 64)
			if err != nil || id == 0 {
				return q, 0, 0, fmt.Errorf("%w: collection_id must be an id or one of %v", ErrInvalidInput, UncategorizedSentinels)
			}
			v := uint(id)
			q.CollectionID = &v
		}
	}

	q.Tags = filterTags(f.Tags)

	var err error
	if q.CreatedFrom, err = parseDateBound(f.DateFrom, false); err != nil {
		return q, 0, 0, fmt.Errorf("%w: date_from: %s", ErrInvalidInput, err.Error())
	}
	if q.CreatedTo, err = parseDateBound(f.DateTo, true); err != nil {
		return q, 0, 0, fmt.Errorf("%w: date_to: %s", ErrInvalidInput, err.Error())
	}
	if q.CreatedFrom != nil && q.CreatedTo != nil && q.CreatedFrom.After(*q.CreatedTo) {
		return q, 0, 0, fmt.Errorf("%w: date_from is after date_to", ErrInvalidInput)
	}

	if q.MinSize, err = megabytesToBytes(f.MinSizeMB); err != nil {
		return q, 0, 0, fmt.Errorf("%w: min_size: %s", ErrInvalidInput, err.Error())
	}
	if q.MaxSize, err = megabytesToBytes(f.MaxSizeMB); err != nil {
		return q, 0, 0, fmt.Errorf("%w: max_size: %s", ErrInvalidInput, err.Error())
	}
	if q.MinSize != nil && q.MaxSize != nil && *q.MinSize > *q.MaxSize {
		return q, 0, 0, fmt.Errorf("%w: min_size is greater than max_size", ErrInvalidInput)
	}

	if (f.MinPages != nil && *f.MinPages < 0) || (f.MaxPages != nil && *f.MaxPages < 0) {
		return q, 0, 0, fmt.Errorf("%w: page bounds must not be negative", ErrInvalidInput)
	}
	if f.MinPages != nil && f.MaxPages != nil && *f.MinPages > *f.MaxPages {
		return q, 0, 0, fmt.Errorf("%w: min_pages is greater than max_pages", ErrInvalidInput)
	}
	q.MinPages, q.MaxPages = f.MinPages, f.MaxPages

	sortKey := strings.TrimSpace(f.Sort)
	if sortKey == "" {
		sortKey = "-createdAt"
	}
	sort, ok := sortOptions[sortKey]
	if !ok {
		return q, 0, 0, fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, sortKey)
	}
	q.Sort = sort

	page, limit := clampPage(f.Page, f.Limit, DefaultPageSize, MaxPageSize)
	q.Offset = (page - 1) * limit
	q.Limit = limit
	return q, page, limit, nil
}

func isUncategorized(v string) bool {
	for _, s := range UncategorizedSentinels {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func filterTags(raw []string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, t := range SplitList(raw...) {
		tag := strings.ToLower(t)
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func parseDateBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", raw)
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}

func megabytesToBytes(mb *float64) (*int64, error) {
	if mb == nil {
		return nil, nil
	}
	if math.IsNaN(*mb) || math.IsInf(*mb, 0) || *mb < 0 {
		return nil, fmt.Errorf("must be a non-negative number of megabytes")
	}
	b := int64(math.Round(*mb * bytesPerMB))
	return &b, nil
}

func clampPage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if limit <= 0 || total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
