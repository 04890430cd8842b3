// Package projects manages development projects: creation, listing of owned and
// shared projects, edits, status changes and soft deletion.
//
// Reads need read access, edits and status changes need write access, and
// deletion is owner-only. Every mutation is written to the audit log.
package projects
