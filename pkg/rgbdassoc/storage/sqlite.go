//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/utils"
)

const DefaultDBFile = "rgbdassoc.sqlite3"
const errDBClientNil = "db client is nil"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Run is the catalog row for one association run.
type Run struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	DatasetDir string    `gorm:"index:idx_run_dataset" json:"dataset_dir"`
	RefDir     string    `json:"ref_dir"`
	CandDir    string    `json:"cand_dir"`
	OutputPath string    `json:"output_path"`
	Tolerance  float64   `json:"tolerance"`
	RefCount   int       `json:"ref_count"`
	CandCount  int       `json:"cand_count"`
	Matched    int       `json:"matched"`
	Unmatched  int       `json:"unmatched"`
	MeanGapMs  float64   `json:"mean_gap_ms"`
	MaxGapMs   float64   `json:"max_gap_ms"`
	CreatedAt  time.Time `gorm:"index:idx_run_created"`
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// Batch runs record concurrently; a single connection serializes writers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RecordRun stores a completed run. A missing ID or CreatedAt is filled in.
func (c *DBClient) RecordRun(run *models.Run) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if run.ID == "" {
		run.ID = utils.NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	row := toRow(run)
	if err := c.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (c *DBClient) GetRun(id string) (*models.Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Run
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	run := fromRow(row)
	return &run, nil
}

// ListRuns returns recorded runs, newest first. limit <= 0 returns all.
func (c *DBClient) ListRuns(limit int) ([]models.Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Run
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	runs := make([]models.Run, len(rows))
	for i, r := range rows {
		runs[i] = fromRow(r)
	}
	return runs, nil
}

func (c *DBClient) DeleteRun(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&Run{})
	if res.Error != nil {
		return fmt.Errorf("deleting run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func toRow(r *models.Run) Run {
	return Run{
		ID:         r.ID,
		DatasetDir: r.DatasetDir,
		RefDir:     r.RefDir,
		CandDir:    r.CandDir,
		OutputPath: r.OutputPath,
		Tolerance:  r.Tolerance,
		RefCount:   r.RefCount,
		CandCount:  r.CandCount,
		Matched:    r.Matched,
		Unmatched:  r.Unmatched,
		MeanGapMs:  r.MeanGapMs,
		MaxGapMs:   r.MaxGapMs,
		CreatedAt:  r.CreatedAt,
	}
}

func fromRow(r Run) models.Run {
	return models.Run{
		ID:         r.ID,
		DatasetDir: r.DatasetDir,
		RefDir:     r.RefDir,
		CandDir:    r.CandDir,
		OutputPath: r.OutputPath,
		Tolerance:  r.Tolerance,
		RefCount:   r.RefCount,
		CandCount:  r.CandCount,
		Matched:    r.Matched,
		Unmatched:  r.Unmatched,
		MeanGapMs:  r.MeanGapMs,
		MaxGapMs:   r.MaxGapMs,
		CreatedAt:  r.CreatedAt,
	}
}
