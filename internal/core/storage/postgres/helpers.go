package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/core/storage"
)

const countAlias = "count"

// dimensionExpr is satisfied by both plain columns and literal SQL fragments.
type dimensionExpr interface {
	exp.Expression
	exp.Aliaseable
	exp.Comparable
}

func dimensionExpression(d storage.Dimension) (dimensionExpr, error) {
	if d.IsColumn() {
		return goqu.C(string(d)), nil
	}
	switch d {
	case storage.DimActor:
		return goqu.L(exprActor), nil
	case storage.DimHourOfDay:
		return goqu.L(exprHourOfDay), nil
	case storage.DimDayOfWeek:
		return goqu.L(exprDayOfWeek), nil
	case storage.DimISOWeek:
		return goqu.L(exprISOWeek), nil
	case storage.DimDay:
		return goqu.L(exprDay), nil
	}
	return nil, fmt.Errorf("unknown dimension %q", d)
}

// buildCount renders q as a single grouped SELECT.
func buildCount(dialect goqu.DialectWrapper, q storage.Query) (string, []interface{}, error) {
	where, err := filterExpressions(q.Filter)
	if err != nil {
		return "", nil, err
	}

	selects := make([]interface{}, 0, len(q.GroupBy)+1)
	groupBy := make([]interface{}, 0, len(q.GroupBy))
	orderBy := []exp.OrderedExpression{goqu.I(countAlias).Desc()}
	for _, d := range q.GroupBy {
		expr, err := dimensionExpression(d)
		if err != nil {
			return "", nil, err
		}
		selects = append(selects, expr.As(string(d)))
		groupBy = append(groupBy, expr)
		orderBy = append(orderBy, goqu.I(string(d)).Asc())
	}

	if q.Distinct != "" {
		expr, err := dimensionExpression(q.Distinct)
		if err != nil {
			return "", nil, err
		}
		selects = append(selects, goqu.COUNT(goqu.DISTINCT(expr)).As(countAlias))
	} else {
		selects = append(selects, goqu.COUNT(goqu.Star()).As(countAlias))
	}

	ds := dialect.From(tableEvents).Prepared(true).Select(selects...).Where(where...)
	if len(groupBy) > 0 {
		ds = ds.GroupBy(groupBy...).Order(orderBy...)
		if q.Limit > 0 {
			ds = ds.Limit(uint(q.Limit))
		}
	}
	return ds.ToSQL()
}

func filterExpressions(f storage.Filter) ([]exp.Expression, error) {
	var where []exp.Expression
	if !f.Start.IsZero() {
		where = append(where, goqu.C("event_timestamp").Gte(f.Start.UTC()))
	}
	if !f.End.IsZero() {
		where = append(where, goqu.C("event_timestamp").Lte(f.End.UTC()))
	}
	if len(f.EventTypes) > 0 {
		types := make([]string, len(f.EventTypes))
		for i, t := range f.EventTypes {
			types[i] = string(t)
		}
		where = append(where, goqu.C(string(storage.DimEventType)).In(types))
	}
	if f.SubjectID != "" {
		where = append(where, goqu.C(string(storage.DimSubjectID)).Eq(f.SubjectID))
	}
	if f.PrincipalID != "" {
		where = append(where, goqu.C(string(storage.DimPrincipal)).Eq(f.PrincipalID))
	}
	for d, v := range f.Match {
		expr, err := dimensionExpression(d)
		if err != nil {
			return nil, err
		}
		where = append(where, expr.Eq(v))
	}
	for _, d := range f.NonEmpty {
		expr, err := dimensionExpression(d)
		if err != nil {
			return nil, err
		}
		// NULL <> '' is NULL, so missing values are excluded as well.
		where = append(where, expr.Neq(""))
	}
	return where, nil
}

// eventRecord maps an event onto telemetry_events columns.
func eventRecord(e *v1.TelemetryEvent) goqu.Record {
	return goqu.Record{
		"id":              e.ID,
		"event_type":      string(e.EventType),
		"event_timestamp": e.Timestamp.UTC(),
		"device_id":       e.DeviceID,
		"user_id":         nullString(e.PrincipalID),
		"app_version":     e.AppVersion,
		"os_version":      e.OSVersion,
		"screen_name":     nullString(e.ScreenName),
		"event_id":        nullString(e.SubjectID),
		"event_name":      nullString(e.SubjectName),
		"city":            nullString(e.City),
		"venue_name":      nullString(e.VenueName),
		"link_type":       nullString(e.LinkType),
		"search_query":    nullString(e.SearchQuery),
		"filter_type":     nullString(e.FilterType),
		"filter_value":    nullString(e.FilterValue),
		"received_at":     e.ReceivedAt.UTC(),
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanGroup reads one row produced by buildCount.
func scanGroup(row scanner, dims []storage.Dimension) (storage.Group, error) {
	values := make([]sql.NullString, len(dims))
	dest := make([]interface{}, 0, len(dims)+1)
	for i := range values {
		dest = append(dest, &values[i])
	}
	var count int64
	dest = append(dest, &count)

	if err := row.Scan(dest...); err != nil {
		return storage.Group{}, fmt.Errorf("failed to scan count row: %w", err)
	}

	keys := make(map[storage.Dimension]string, len(dims))
	for i, d := range dims {
		keys[d] = values[i].String
	}
	return storage.Group{Keys: keys, Count: count}, nil
}

// classify marks connection-level failures as storage.ErrUnavailable.
func classify(op string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
