// Package models contains GORM-specific persistence models that map to
// database tables. These models are separate from domain entities to keep the
// domain layer free from ORM concerns; the repositories convert between the
// two.
//
// pipeline.go holds the sync pipeline tables: staged source records, sync
// tasks, identifier mappings, probe results and encrypted secrets.
package models
