package orderbot

import "embed"

// Migrations holds the goose migrations for the orders database.
//
//go:embed migrations/*.sql
var Migrations embed.FS
