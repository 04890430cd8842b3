package db

// VisibleProjectIDs selects the ids of live projects user $1 owns or holds accepted,
// non-revoked access to. Use it as `project_id IN (` + VisibleProjectIDs + `)`.
const VisibleProjectIDs = `
	SELECT p.id FROM projects p
	WHERE p.owner_id = $1 AND p.deleted_at IS NULL
	UNION
	SELECT pa.project_id FROM project_access pa
	JOIN projects p ON p.id = pa.project_id
	WHERE pa.user_id = $1 AND pa.accepted_at IS NOT NULL AND pa.deleted_at IS NULL
		AND p.deleted_at IS NULL`
