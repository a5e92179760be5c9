// Package models holds the records shared by the scheduler core and its
// storage backends: vocabulary items, per-word progress and the
// append-only review log.
package models
