// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for members, orders, the product catalog with its
// bill of materials, season sales and API keys. Every statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
