// Package tasks runs the champion upload pipeline with real-time progress reporting.
//
// # Core Operations
//
// [Pipeline] splits one upload into two halves joined by a [flow.Coordinator]:
//
//  1. [Pipeline.Start] : first request
//     - Validates the champion name against Data Dragon
//     - Stores it as pending and returns the Dropbox authorize URL
//
//  2. [Pipeline.Resume] : OAuth callback
//     - Takes the pending champion name back out of the coordinator
//     - Exchanges the code, downloads the loading-screen art, writes it to the asset store
//     - Uploads the stored bytes and returns the Dropbox preview URL
//
// [Pipeline.Deny] handles a callback where the user refused consent.
//
// Every stage is strictly sequential and the first failure stops the run. Failures are returned as
// [*StageError] so callers can see which stage failed while still matching the sentinel with [errors.Is].
//
// # Progress Reporting
//
// Stage transitions are sent as [StageUpdate] values on an optional channel. Sends use select with
// default so a slow or absent reader never stalls a run.
//
// # Run History
//
// The optional [RunRecorder] (repositories.RunRepository) stores each resumed run. Recording errors are
// logged and otherwise ignored.
package tasks
