package postgres

// schemaStatements create the persistent layout. Documents are exclusively
// owned by their case; the cascade keeps a future case deletion from leaving
// orphan rows.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cases (
		id BIGSERIAL PRIMARY KEY,
		source_url TEXT NOT NULL UNIQUE,
		title TEXT,
		case_number TEXT,
		citation TEXT,
		court TEXT,
		parties TEXT,
		judges TEXT,
		date TEXT,
		content_text TEXT,
		summary TEXT,
		snapshot_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		case_id BIGINT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
		source_url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		mime_type TEXT,
		kind TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (case_id, source_url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_case_id ON documents (case_id)`,
}
