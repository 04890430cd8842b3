// Package invitations manages partner invitations on a project.
//
// An invitation is a project_access row. It is pending while it carries a token and
// has not been accepted, becomes live access once accepted, and is revoked by a soft
// delete. Expiry is derived from expires_at when the row is read; nothing sweeps
// expired rows. A revoked row is terminal and a new invitation creates a new row.
package invitations
