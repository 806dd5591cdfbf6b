package storage

const (
	userColumns   = `id, email, password_hash, created_at`
	recordColumns = `id, owner_id, kind, amount_cents, product_cost_cents, category, description, occurred_at, recorded_at`
	goalColumns   = `id, owner_id, horizon, target_cents, work_days, margin_mode, manual_margin_percent, created_at`
)

const (
	insertUser        = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?)`
	selectUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	selectUserByID    = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	insertRecord         = `INSERT INTO records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	deleteRecord         = `DELETE FROM records WHERE id = ? AND owner_id = ?`
	deleteRecordsByOwner = `DELETE FROM records WHERE owner_id = ?`
	selectRecord         = `SELECT ` + recordColumns + ` FROM records WHERE id = ?`
	selectRecordsByOwner = `SELECT ` + recordColumns + ` FROM records WHERE owner_id = ? ORDER BY occurred_at DESC, recorded_at DESC`
	selectPendingExports = `SELECT ` + recordColumns + ` FROM records WHERE export_status = 'pending' ORDER BY recorded_at ASC LIMIT ?`
	markExport           = `UPDATE records SET export_status = ?, export_ref = ? WHERE id = ?`
	selectExportStatus   = `SELECT export_status FROM records WHERE id = ?`
	requeueFailed        = `UPDATE records SET export_status = 'pending' WHERE export_status = 'failed'`

	insertGoal         = `INSERT INTO goals (` + goalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	replaceGoal        = `UPDATE goals SET horizon = ?, target_cents = ?, work_days = ?, margin_mode = ?, manual_margin_percent = ? WHERE id = ? AND owner_id = ?`
	deleteGoal         = `DELETE FROM goals WHERE id = ? AND owner_id = ?`
	deleteGoalsByOwner = `DELETE FROM goals WHERE owner_id = ?`
	selectGoal         = `SELECT ` + goalColumns + ` FROM goals WHERE id = ?`
	selectGoalsByOwner = `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = ? ORDER BY created_at ASC, id ASC`
)
