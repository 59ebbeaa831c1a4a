package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"form-analytics-server/models"
)

type formRecord struct {
	ID          uint64                            `gorm:"primaryKey"`
	Title       string                            `gorm:"size:200;not null"`
	Description string                            `gorm:"type:text"`
	Fields      datatypes.JSONSlice[models.Field] `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Responses []responseRecord `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE"`
}

func (formRecord) TableName() string { return "forms" }

func (r *formRecord) toModel() models.Form {
	fields := []models.Field(r.Fields)
	if fields == nil {
		fields = []models.Field{}
	}
	for i := range fields {
		if fields[i].Validation != nil {
			fields[i].Validation = models.NormalizeValues(fields[i].Validation)
		}
	}
	return models.Form{
		ID:          formatID(r.ID),
		Title:       r.Title,
		Description: r.Description,
		Fields:      fields,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type responseRecord struct {
	ID          uint64            `gorm:"primaryKey"`
	FormID      uint64            `gorm:"not null;index:idx_form_responses_form_submitted,priority:1"`
	Values      datatypes.JSONMap `gorm:"column:responses;not null"`
	SubmittedAt time.Time         `gorm:"not null;index:idx_form_responses_form_submitted,priority:2;index"`
	IPAddress   string            `gorm:"size:45"`
}

func (responseRecord) TableName() string { return "form_responses" }

func (r *responseRecord) toModel() models.Response {
	return models.Response{
		ID:          formatID(r.ID),
		FormID:      formatID(r.FormID),
		Values:      models.NormalizeValues(r.Values),
		SubmittedAt: r.SubmittedAt,
		IPAddress:   r.IPAddress,
	}
}

// GormStore is the relational backend. It serves both Postgres and SQLite.
type GormStore struct {
	db      *gorm.DB
	backend string
}

func NewGormStore(db *gorm.DB, backend string) *GormStore {
	return &GormStore{db: db, backend: backend}
}

func (s *GormStore) Backend() string { return s.backend }

// DB exposes the underlying handle for migrations and tests.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) CreateForm(ctx context.Context, input models.FormInput) (*models.Form, error) {
	record := formRecord{
		Title:       input.Title,
		Description: input.Description,
		Fields:      datatypes.JSONSlice[models.Field](input.Fields),
	}
	if record.Fields == nil {
		record.Fields = datatypes.JSONSlice[models.Field]{}
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	form := record.toModel()
	return &form, nil
}

func (s *GormStore) GetForm(ctx context.Context, id string) (*models.Form, error) {
	record, err := s.findForm(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	form := record.toModel()
	return &form, nil
}

func (s *GormStore) ListForms(ctx context.Context) ([]models.Form, error) {
	var records []formRecord
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	forms := make([]models.Form, len(records))
	for i := range records {
		forms[i] = records[i].toModel()
	}
	return forms, nil
}

func (s *GormStore) UpdateForm(ctx context.Context, id string, patch models.FormPatch) (*models.Form, error) {
	var updated formRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.findForm(tx, id)
		if err != nil {
			return err
		}
		form := record.toModel()
		patch.Apply(&form)
		record.Title = form.Title
		record.Description = form.Description
		record.Fields = datatypes.JSONSlice[models.Field](form.Fields)
		if err := tx.Save(record).Error; err != nil {
			return fmt.Errorf("failed to update form: %w", err)
		}
		updated = *record
		return nil
	})
	if err != nil {
		return nil, err
	}
	form := updated.toModel()
	return &form, nil
}

// DeleteForm removes responses and the form in one transaction.
func (s *GormStore) DeleteForm(ctx context.Context, id string) error {
	formID, ok := parseID(id)
	if !ok {
		return ErrFormNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("form_id = ?", formID).Delete(&responseRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete form responses: %w", err)
		}
		result := tx.Delete(&formRecord{}, formID)
		if result.Error != nil {
			return fmt.Errorf("failed to delete form: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrFormNotFound
		}
		return nil
	})
}

func (s *GormStore) CreateResponse(ctx context.Context, formID string, values map[string]any, ipAddress string) (*models.Response, error) {
	var created responseRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form, err := s.findForm(tx, formID)
		if err != nil {
			return err
		}
		created = responseRecord{
			FormID:      form.ID,
			Values:      datatypes.JSONMap(values),
			SubmittedAt: time.Now().UTC(),
			IPAddress:   ipAddress,
		}
		if created.Values == nil {
			created.Values = datatypes.JSONMap{}
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	response := created.toModel()
	return &response, nil
}

func (s *GormStore) ListResponses(ctx context.Context, formID string, query models.ResponseQuery) ([]models.Response, error) {
	id, ok := parseID(formID)
	if !ok {
		return []models.Response{}, nil
	}
	tx := s.db.WithContext(ctx).Where("form_id = ?", id)
	return s.findResponses(orderResponses(tx, query.Order), query.Limit)
}

func (s *GormStore) ListRecentResponses(ctx context.Context, formIDs []string, limit int) ([]models.Response, error) {
	ids := make([]uint64, 0, len(formIDs))
	for _, formID := range formIDs {
		if id, ok := parseID(formID); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []models.Response{}, nil
	}
	tx := s.db.WithContext(ctx).Where("form_id IN ?", ids)
	return s.findResponses(orderResponses(tx, models.NewestFirst), limit)
}

func (s *GormStore) CountResponses(ctx context.Context, formID string) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&responseRecord{})
	if formID != "" {
		id, ok := parseID(formID)
		if !ok {
			return 0, nil
		}
		tx = tx.Where("form_id = ?", id)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}

func (s *GormStore) DeleteOrphanResponses(ctx context.Context) (int64, error) {
	db := s.db.WithContext(ctx)
	result := db.Where("form_id NOT IN (?)", db.Model(&formRecord{}).Select("id")).Delete(&responseRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete orphan responses: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) findForm(tx *gorm.DB, id string) (*formRecord, error) {
	formID, ok := parseID(id)
	if !ok {
		return nil, ErrFormNotFound
	}
	var record formRecord
	if err := tx.First(&record, formID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	return &record, nil
}

func (s *GormStore) findResponses(tx *gorm.DB, limit int) ([]models.Response, error) {
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var records []responseRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	responses := make([]models.Response, len(records))
	for i := range records {
		responses[i] = records[i].toModel()
	}
	return responses, nil
}

// orderResponses sorts by submission time; ties fall back to insertion order.
func orderResponses(tx *gorm.DB, order models.ResponseOrder) *gorm.DB {
	if order == models.OldestFirst {
		return tx.Order("submitted_at ASC").Order("id ASC")
	}
	return tx.Order("submitted_at DESC").Order("id ASC")
}

func parseID(id string) (uint64, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
