package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	surrealdb "github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"form-analytics-server/models"
)

const (
	surrealFormTable     = "form"
	surrealResponseTable = "response"
)

type SurrealOptions struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// surrealForm uses CustomDateTime because plain time.Time does not round-trip
// through the driver's CBOR codec as a SurrealDB datetime.
type surrealForm struct {
	ID          *surrealmodels.RecordID      `json:"id,omitempty"`
	Title       string                       `json:"title"`
	Description string                       `json:"description"`
	Fields      []models.Field               `json:"fields"`
	CreatedAt   surrealmodels.CustomDateTime `json:"created_at"`
	UpdatedAt   surrealmodels.CustomDateTime `json:"updated_at"`
}

func (f *surrealForm) toModel() models.Form {
	fields := f.Fields
	if fields == nil {
		fields = []models.Field{}
	}
	for i := range fields {
		if fields[i].Validation != nil {
			fields[i].Validation = fromSurrealMap(fields[i].Validation)
		}
	}
	return models.Form{
		ID:          recordKey(f.ID),
		Title:       f.Title,
		Description: f.Description,
		Fields:      fields,
		CreatedAt:   f.CreatedAt.Time.UTC(),
		UpdatedAt:   f.UpdatedAt.Time.UTC(),
	}
}

type surrealResponse struct {
	ID          *surrealmodels.RecordID      `json:"id,omitempty"`
	Form        surrealmodels.RecordID       `json:"form"`
	Values      map[string]any               `json:"responses"`
	SubmittedAt surrealmodels.CustomDateTime `json:"submitted_at"`
	IPAddress   string                       `json:"ip_address,omitempty"`
}

func (r *surrealResponse) toModel() models.Response {
	return models.Response{
		ID:          recordKey(r.ID),
		FormID:      recordKey(&r.Form),
		Values:      fromSurrealMap(r.Values),
		SubmittedAt: r.SubmittedAt.Time.UTC(),
		IPAddress:   r.IPAddress,
	}
}

// SurrealStore is the multi-model backend. It speaks SurrealQL directly and
// keys records with UUIDv7 strings so id order follows insertion order.
type SurrealStore struct {
	db  *surrealdb.DB
	log *logrus.Entry
}

func OpenSurreal(ctx context.Context, opts SurrealOptions, log *logrus.Entry) (*SurrealStore, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if opts.Username != "" && opts.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": opts.Username,
			"pass": opts.Password,
		}); err != nil {
			_ = db.Close(context.Background())
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	store := &SurrealStore{db: db, log: log}
	if err := store.defineSchema(ctx); err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}
	log.Infof("✅ Connected to SurrealDB %s/%s", opts.Namespace, opts.Database)
	return store, nil
}

func (s *SurrealStore) Backend() string { return "surrealdb" }

func (s *SurrealStore) defineSchema(ctx context.Context) error {
	const schema = `DEFINE INDEX IF NOT EXISTS response_form_submitted ON TABLE response FIELDS form, submitted_at;`
	if _, err := surrealdb.Query[any](ctx, s.db, schema, map[string]any{}); err != nil {
		return fmt.Errorf("failed to define response index: %w", err)
	}
	return nil
}

func (s *SurrealStore) CreateForm(ctx context.Context, input models.FormInput) (*models.Form, error) {
	now := surrealmodels.CustomDateTime{Time: time.Now().UTC()}
	rid := surrealmodels.NewRecordID(surrealFormTable, newSurrealKey())
	record := surrealForm{
		Title:       input.Title,
		Description: input.Description,
		Fields:      input.Fields,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if record.Fields == nil {
		record.Fields = []models.Field{}
	}

	created, err := surrealdb.Create[surrealForm](ctx, s.db, rid, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	form := created.toModel()
	return &form, nil
}

func (s *SurrealStore) GetForm(ctx context.Context, id string) (*models.Form, error) {
	record, err := s.selectForm(ctx, id)
	if err != nil {
		return nil, err
	}
	form := record.toModel()
	return &form, nil
}

func (s *SurrealStore) ListForms(ctx context.Context) ([]models.Form, error) {
	records, err := queryRows[surrealForm](ctx, s.db,
		"SELECT * FROM form ORDER BY created_at ASC, id ASC",
		map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	forms := make([]models.Form, len(records))
	for i := range records {
		forms[i] = records[i].toModel()
	}
	return forms, nil
}

func (s *SurrealStore) UpdateForm(ctx context.Context, id string, patch models.FormPatch) (*models.Form, error) {
	if _, err := s.selectForm(ctx, id); err != nil {
		return nil, err
	}

	merge := map[string]any{
		"updated_at": surrealmodels.CustomDateTime{Time: time.Now().UTC()},
	}
	if patch.Title != nil {
		merge["title"] = *patch.Title
	}
	if patch.Description != nil {
		merge["description"] = *patch.Description
	}
	if patch.Fields != nil {
		merge["fields"] = *patch.Fields
	}

	records, err := queryRows[surrealForm](ctx, s.db,
		"UPDATE $rid MERGE $merge RETURN AFTER",
		map[string]any{"rid": surrealmodels.NewRecordID(surrealFormTable, id), "merge": merge})
	if err != nil {
		return nil, fmt.Errorf("failed to update form: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrFormNotFound
	}
	form := records[0].toModel()
	return &form, nil
}

// DeleteForm runs both deletes in one SurrealQL transaction.
func (s *SurrealStore) DeleteForm(ctx context.Context, id string) error {
	if _, err := s.selectForm(ctx, id); err != nil {
		return err
	}

	const query = `
		BEGIN TRANSACTION;
		DELETE response WHERE form = $rid;
		DELETE $rid;
		COMMIT TRANSACTION;`
	if _, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"rid": surrealmodels.NewRecordID(surrealFormTable, id),
	}); err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	return nil
}

func (s *SurrealStore) CreateResponse(ctx context.Context, formID string, values map[string]any, ipAddress string) (*models.Response, error) {
	form, err := s.selectForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	if values == nil {
		values = map[string]any{}
	}
	record := surrealResponse{
		Form:        *form.ID,
		Values:      values,
		SubmittedAt: surrealmodels.CustomDateTime{Time: time.Now().UTC()},
		IPAddress:   ipAddress,
	}
	rid := surrealmodels.NewRecordID(surrealResponseTable, newSurrealKey())

	created, err := surrealdb.Create[surrealResponse](ctx, s.db, rid, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}
	response := created.toModel()
	return &response, nil
}

func (s *SurrealStore) ListResponses(ctx context.Context, formID string, query models.ResponseQuery) ([]models.Response, error) {
	if !validSurrealKey(formID) {
		return []models.Response{}, nil
	}
	sql := "SELECT * FROM response WHERE form = $form" + surrealOrder(query.Order) + surrealLimit(query.Limit)
	return s.findResponses(ctx, sql, map[string]any{
		"form":  surrealmodels.NewRecordID(surrealFormTable, formID),
		"limit": query.Limit,
	})
}

func (s *SurrealStore) ListRecentResponses(ctx context.Context, formIDs []string, limit int) ([]models.Response, error) {
	forms := make([]surrealmodels.RecordID, 0, len(formIDs))
	for _, id := range formIDs {
		if validSurrealKey(id) {
			forms = append(forms, surrealmodels.NewRecordID(surrealFormTable, id))
		}
	}
	if len(forms) == 0 {
		return []models.Response{}, nil
	}
	sql := "SELECT * FROM response WHERE form INSIDE $forms" + surrealOrder(models.NewestFirst) + surrealLimit(limit)
	return s.findResponses(ctx, sql, map[string]any{"forms": forms, "limit": limit})
}

func (s *SurrealStore) CountResponses(ctx context.Context, formID string) (int64, error) {
	type countRow struct {
		Total int64 `json:"total"`
	}

	sql := "SELECT count() AS total FROM response GROUP ALL"
	params := map[string]any{}
	if formID != "" {
		if !validSurrealKey(formID) {
			return 0, nil
		}
		sql = "SELECT count() AS total FROM response WHERE form = $form GROUP ALL"
		params["form"] = surrealmodels.NewRecordID(surrealFormTable, formID)
	}

	rows, err := queryRows[countRow](ctx, s.db, sql, params)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (s *SurrealStore) DeleteOrphanResponses(ctx context.Context) (int64, error) {
	rows, err := queryRows[surrealResponse](ctx, s.db,
		"DELETE response WHERE form NOTINSIDE (SELECT VALUE id FROM form) RETURN BEFORE",
		map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan responses: %w", err)
	}
	return int64(len(rows)), nil
}

func (s *SurrealStore) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, s.db, "RETURN true", map[string]any{})
	return err
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

func (s *SurrealStore) selectForm(ctx context.Context, id string) (*surrealForm, error) {
	if !validSurrealKey(id) {
		return nil, ErrFormNotFound
	}
	rows, err := queryRows[surrealForm](ctx, s.db, "SELECT * FROM $rid", map[string]any{
		"rid": surrealmodels.NewRecordID(surrealFormTable, id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	if len(rows) == 0 || rows[0].ID == nil {
		return nil, ErrFormNotFound
	}
	return &rows[0], nil
}

func (s *SurrealStore) findResponses(ctx context.Context, sql string, params map[string]any) ([]models.Response, error) {
	rows, err := queryRows[surrealResponse](ctx, s.db, sql, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	responses := make([]models.Response, len(rows))
	for i := range rows {
		responses[i] = rows[i].toModel()
	}
	return responses, nil
}

// queryRows runs a single-statement query and returns its rows.
func queryRows[T any](ctx context.Context, db *surrealdb.DB, sql string, params map[string]any) ([]T, error) {
	result, err := surrealdb.Query[[]T](ctx, db, sql, params)
	if err != nil {
		return nil, err
	}
	if result == nil || len(*result) == 0 {
		return nil, nil
	}
	last := (*result)[len(*result)-1]
	if last.Status != "" && last.Status != "OK" {
		return nil, fmt.Errorf("query status %s", last.Status)
	}
	return last.Result, nil
}

func surrealOrder(order models.ResponseOrder) string {
	if order == models.OldestFirst {
		return " ORDER BY submitted_at ASC, id ASC"
	}
	return " ORDER BY submitted_at DESC, id ASC"
}

func surrealLimit(limit int) string {
	if limit > 0 {
		return " LIMIT $limit"
	}
	return ""
}

func newSurrealKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

func validSurrealKey(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func recordKey(rid *surrealmodels.RecordID) string {
	if rid == nil {
		return ""
	}
	return fmt.Sprint(rid.ID)
}

func fromSurrealMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromSurreal(v)
	}
	return out
}

func fromSurreal(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[fmt.Sprint(k)] = fromSurreal(item)
		}
		return m
	case map[string]any:
		return fromSurrealMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromSurreal(item)
		}
		return out
	}
	return models.NormalizeValue(v)
}
