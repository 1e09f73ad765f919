// Package models defines domain entities and persistence interfaces for the champion upload service.
//
//   - [Stage] : the steps of the upload pipeline, from validation to done/failed
//   - [Run] : one resumed pipeline execution with its final stage, viewer location and error
//
// Persistent entities implement the [Model] interface. The [Repository] interface defines standard CRUD
// operations for database access.
package models
