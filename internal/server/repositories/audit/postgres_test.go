package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInsert_WithMetadata(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	userID := "u-1"
	entityID := "c-1"

	q := `(?s)^INSERT\s+INTO\s+audit_log\s*\(user_id,\s*action,\s*entity_type,\s*entity_id,\s*success,\s*metadata,\s*ip\)`

	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("l-1", time.Now())
	mock.ExpectQuery(q).
		WithArgs(&userID, "challenge_issued", "challenge", &entityID, true, []byte(`{"difficulty":"medium"}`), "10.0.0.1").
		WillReturnRows(rows)

	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     "challenge_issued",
		EntityType: "challenge",
		EntityID:   &entityID,
		Success:    true,
		Metadata:   map[string]string{"difficulty": "medium"},
		IP:         "10.0.0.1",
	}
	got, err := repo.Insert(context.Background(), entry)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if got.ID != "l-1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestSelectByEntity(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,\s*action,.*FROM\s+audit_log\s+WHERE\s+entity_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$2\s*$`

	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "entity_type", "entity_id", "success", "metadata", "ip", "created_at"}).
		AddRow("l-2", nil, "rule_updated", "rule", "r-1", true, []byte(`{"old":"0.75","new":"0.8"}`), "", time.Now())
	mock.ExpectQuery(q).WithArgs("r-1", 50).WillReturnRows(rows)

	got, err := repo.SelectByEntity(context.Background(), "r-1", 50)
	if err != nil {
		t.Fatalf("SelectByEntity error: %v", err)
	}
	if len(got) != 1 || got[0].Action != "rule_updated" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].Metadata["new"] != "0.8" {
		t.Fatalf("metadata not unmarshalled: %+v", got[0].Metadata)
	}
}
