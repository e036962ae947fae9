package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"FinTrain/internal/domain/errs"
	domrepo "FinTrain/internal/domain/repository"
	"FinTrain/internal/domain/service"
)

// CheckpointModel is one saved set of model parameters.
type CheckpointModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null;uniqueIndex"`
	Model     string `gorm:"size:64;not null"`
	Params    []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CheckpointModel) TableName() string {
	return "checkpoints"
}

type paramBlob struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// OpenCheckpointDB opens the checkpoint database and migrates its schema.
func OpenCheckpointDB(driver, dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case "sqlite":
		dial = sqlite.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	default:
		return nil, errs.Configuration("open checkpoint db", "unsupported driver %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	if err := db.AutoMigrate(&CheckpointModel{}); err != nil {
		return nil, fmt.Errorf("migrate checkpoints: %w", err)
	}
	return db, nil
}

// GormCheckpointStore keeps model parameters in a SQL table through gorm.
type GormCheckpointStore struct {
	db *gorm.DB
}

var _ domrepo.CheckpointStore = (*GormCheckpointStore)(nil)

func NewCheckpointStore(db *gorm.DB) *GormCheckpointStore {
	return &GormCheckpointStore{db: db}
}

// Save stores the model's parameters under name, replacing any earlier save.
func (s *GormCheckpointStore) Save(ctx context.Context, m service.Model, name string) error {
	params := m.Parameters()
	blobs := make([]paramBlob, len(params))
	for i, p := range params {
		blobs[i] = paramBlob{Name: p.Name, Values: p.Value}
	}
	data, err := json.Marshal(blobs)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	rec := CheckpointModel{Name: name, Model: m.Name(), Params: data}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"model", "params", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", name, err)
	}
	return nil
}

// Load copies the parameters saved under name into m. The saved model kind
// and every parameter's name and size must match.
func (s *GormCheckpointStore) Load(ctx context.Context, m service.Model, name string) error {
	var rec CheckpointModel
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Configuration("load checkpoint", "checkpoint %q not found", name)
	}
	if err != nil {
		return fmt.Errorf("load checkpoint %q: %w", name, err)
	}
	if rec.Model != m.Name() {
		return errs.ShapeMismatch("load checkpoint", "checkpoint %q holds a %s model, not %s", name, rec.Model, m.Name())
	}

	var blobs []paramBlob
	if err := json.Unmarshal(rec.Params, &blobs); err != nil {
		return fmt.Errorf("decode checkpoint %q: %w", name, err)
	}
	params := m.Parameters()
	if len(blobs) != len(params) {
		return errs.ShapeMismatch("load checkpoint", "checkpoint %q has %d parameters, model has %d", name, len(blobs), len(params))
	}
	for i, p := range params {
		b := blobs[i]
		if b.Name != p.Name || len(b.Values) != len(p.Value) {
			return errs.ShapeMismatch("load checkpoint", "parameter %s[%d] does not match saved %s[%d]",
				p.Name, len(p.Value), b.Name, len(b.Values))
		}
	}
	for i, p := range params {
		copy(p.Value, blobs[i].Values)
	}
	return nil
}
