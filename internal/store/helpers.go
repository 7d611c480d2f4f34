package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/BrandOS/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `session_id, phase, company_type, company_stage, flow_type, plan_type,
	questionnaire_data, questionnaire_completed, has_document_addon, created_at, updated_at`

// marshalAnswers converts questionnaire answers to the JSON text stored in questionnaire_data.
func marshalAnswers(answers map[string]string) (string, error) {
	if len(answers) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal questionnaire data: %w", err)
	}
	return string(b), nil
}

// scanSession scans one sessions row. Corrupt questionnaire JSON yields empty answers rather
// than failing the read.
func scanSession(row rowScanner) (models.SessionRecord, error) {
	var rec models.SessionRecord
	var data sql.NullString
	err := row.Scan(
		&rec.SessionID, &rec.Phase, &rec.CompanyType, &rec.CompanyStage, &rec.FlowType, &rec.PlanType,
		&data, &rec.QuestionnaireCompleted, &rec.HasDocumentAddon, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.QuestionnaireData = make(map[string]string)
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &rec.QuestionnaireData); err != nil {
			slog.Warn("store: questionnaire data unreadable, using empty answers", "error", err, "sessionID", rec.SessionID)
			rec.QuestionnaireData = make(map[string]string)
		}
	}
	return rec, nil
}

// scanSessions drains rows into records.
func scanSessions(rows *sql.Rows) ([]models.SessionRecord, error) {
	defer rows.Close()
	var out []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return out, nil
}
