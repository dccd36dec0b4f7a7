// Package store holds the Postgres repositories for the recruitment
// collections: applications, activity logs, messages and configs.
package store

import sq "github.com/Masterminds/squirrel"

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}
