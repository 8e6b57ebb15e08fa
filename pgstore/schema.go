package pgstore

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plans (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	limit_per_window INTEGER,
	window_seconds INTEGER,
	bucket_capacity INTEGER,
	refill_rate_per_sec DOUBLE PRECISION,
	concurrency_limit INTEGER,
	cost_per_call INTEGER NOT NULL DEFAULT 1,
	burst_factor DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_keys (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	key_hash TEXT UNIQUE NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	revoked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_api_keys_key_hash ON api_keys(key_hash);

CREATE TABLE IF NOT EXISTS resource_policies (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	resource TEXT NOT NULL,
	subject_type TEXT NOT NULL,
	plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_resource_policies_lookup
	ON resource_policies(tenant_id, resource, subject_type);
`
