package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				type VARCHAR(50) NOT NULL,
				priority INT NOT NULL DEFAULT 0,
				definition JSONB,
				version INT NOT NULL DEFAULT 0,
				triggers JSONB,
				variables JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				archived_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_versions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				version_number INT NOT NULL,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_workflow_versions_number ON workflow_versions(workflow_id, version_number);

			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				version_id VARCHAR(255) NOT NULL REFERENCES workflow_versions(id),
				lead_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				payload JSONB,
				current_node_id VARCHAR(255),
				error_message TEXT,
				user_id VARCHAR(255),
				step_count INT NOT NULL DEFAULT 0,
				cancel_requested BOOLEAN NOT NULL DEFAULT false,
				resume_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				failed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_executions_status ON workflow_executions(status);
			CREATE INDEX idx_executions_resume_at ON workflow_executions(resume_at)
				WHERE resume_at IS NOT NULL;
			CREATE INDEX idx_executions_lead ON workflow_executions(workflow_id, lead_id)
				WHERE status IN ('pending', 'running');

			CREATE TABLE workflow_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
				workflow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255),
				event_type VARCHAR(50) NOT NULL,
				message TEXT,
				payload JSONB,
				status VARCHAR(50) NOT NULL,
				sequence BIGINT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_workflow_logs_sequence ON workflow_logs(execution_id, sequence);

			CREATE TABLE workflow_leads (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				lead_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				context_data JSONB,
				revision BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_workflow_leads_pair ON workflow_leads(workflow_id, lead_id);
			CREATE INDEX idx_workflow_leads_status ON workflow_leads(status);
		`,
	}
}
