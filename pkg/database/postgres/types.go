package postgres

import "github.com/Masterminds/squirrel"

// QueryBuilder SQL 构建器，使用 $n 占位符
var QueryBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
