package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE processes (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE stages (
				id UUID PRIMARY KEY,
				process_id UUID NOT NULL REFERENCES processes(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				order_index INT NOT NULL DEFAULT 0,
				priority INT NOT NULL DEFAULT 0,
				color VARCHAR(32) NOT NULL DEFAULT '',
				is_initial BOOLEAN NOT NULL DEFAULT false,
				is_final BOOLEAN NOT NULL DEFAULT false,
				sla_hours INT,
				allowed_transitions JSONB NOT NULL DEFAULT '[]'
			);

			CREATE INDEX idx_stages_process_id ON stages(process_id);

			CREATE TABLE field_definitions (
				id UUID PRIMARY KEY,
				process_id UUID NOT NULL REFERENCES processes(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				field_type VARCHAR(32) NOT NULL,
				options JSONB NOT NULL DEFAULT '[]',
				is_required BOOLEAN NOT NULL DEFAULT false,
				is_system_field BOOLEAN NOT NULL DEFAULT false,
				order_index INT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_field_definitions_process_id ON field_definitions(process_id);

			CREATE SEQUENCE ticket_number_seq;

			CREATE TABLE tickets (
				id UUID PRIMARY KEY,
				ticket_number VARCHAR(32) NOT NULL UNIQUE,
				process_id UUID NOT NULL REFERENCES processes(id),
				current_stage_id UUID NOT NULL,
				title VARCHAR(500) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL,
				priority VARCHAR(16) NOT NULL,
				ticket_type VARCHAR(100) NOT NULL DEFAULT '',
				assigned_to VARCHAR(255),
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				due_date TIMESTAMP WITH TIME ZONE,
				data JSONB NOT NULL DEFAULT '{}',
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tickets_process_stage ON tickets(process_id, current_stage_id);

			CREATE TABLE ticket_activities (
				id UUID PRIMARY KEY,
				ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
				actor VARCHAR(255) NOT NULL DEFAULT '',
				activity_type VARCHAR(50) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_ticket_activities_ticket_id ON ticket_activities(ticket_id, created_at);
		`,
		2: `
			CREATE TABLE recurring_rules (
				id UUID PRIMARY KEY,
				process_id UUID NOT NULL REFERENCES processes(id),
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				template JSONB NOT NULL,
				schedule JSONB NOT NULL,
				start_date TIMESTAMP WITH TIME ZONE NOT NULL,
				end_date TIMESTAMP WITH TIME ZONE,
				is_active BOOLEAN NOT NULL DEFAULT true,
				execution_count INT NOT NULL DEFAULT 0,
				max_executions INT,
				last_execution_date TIMESTAMP WITH TIME ZONE,
				next_execution_date TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_recurring_rules_due ON recurring_rules(next_execution_date) WHERE is_active;
		`,
		3: `
			-- Execution lease for the rule scheduler
			ALTER TABLE recurring_rules
				ADD COLUMN claim_token VARCHAR(64),
				ADD COLUMN claimed_until TIMESTAMP WITH TIME ZONE;
		`,
	}
}
