// Package audit is the append-only audit trail.
//
// Every access decision and every successful mutation is written as an Entry.
// Entries are never updated or deleted; the audit_log table rejects both with a
// trigger. SecurityLog lets a project owner page through or export the access
// decisions recorded for their project.
package audit
