// Package sqlstore implements tracking.Client on a relational database
// (PostgreSQL or MySQL) through gorm, the way an MLflow server with a
// database backend store keeps runs and the model registry.
package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Store is a database-backed tracking.Client.
type Store struct {
	db           *gorm.DB
	artifactRoot string
	logger       log.Logger
}

var _ tracking.Client = (*Store)(nil)

// Dialector picks the gorm driver from a tracking URI such as
// postgresql://user:pw@host:5432/mlflow or mysql+pymysql://user:pw@host/mlflow.
func Dialector(dsn string) (gorm.Dialector, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, errors.NewValidationError("tracking.uri", "malformed database URI", dsn)
	}
	scheme, _, _ := strings.Cut(u.Scheme, "+")

	switch scheme {
	case "postgres", "postgresql":
		u.Scheme = "postgres"
		return postgres.Open(u.String()), nil
	case "mysql":
		return mysql.Open(mysqlDSN(u)), nil
	default:
		return nil, errors.NewValidationError("tracking.uri", "unsupported database scheme", u.Scheme)
	}
}

// mysqlDSN converts a URL to the go-sql-driver form user:pw@tcp(host)/db.
func mysqlDSN(u *url.URL) string {
	var b strings.Builder
	if u.User != nil {
		b.WriteString(u.User.Username())
		if pw, ok := u.User.Password(); ok {
			b.WriteString(":" + pw)
		}
		b.WriteString("@")
	}
	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}
	fmt.Fprintf(&b, "tcp(%s)/%s", host, strings.TrimPrefix(u.Path, "/"))

	q := u.Query()
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	b.WriteString("?" + q.Encode())
	return b.String()
}

// gormWriter routes gorm's slow-query and error log lines to log.Logger.
type gormWriter struct {
	logger log.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...), log.ComponentKey, "gorm")
}

// Open connects to dsn and migrates the schema. artifactRoot is the base
// URI under which run artifact locations are allocated.
func Open(dsn, artifactRoot string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	dialector, err := Dialector(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormlogger.New(gormWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.WrapRegistryError("connect", err)
	}
	return New(db, artifactRoot, logger)
}

// New wraps an open connection and runs AutoMigrate.
func New(db *gorm.DB, artifactRoot string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, errors.WrapRegistryError("migrate", err)
	}
	return &Store{
		db:           db,
		artifactRoot: strings.TrimRight(artifactRoot, "/"),
		logger:       logger,
	}, nil
}

func notFound(op, msg string) error {
	return errors.NewRegistryError(op, 404, errors.CodeResourceDoesNotExist, msg)
}

func wrap(op string, err error, missing string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, missing)
	}
	return errors.WrapRegistryError(op, err)
}

func parseExperimentID(op, id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, errors.NewRegistryError(op, 400, errors.CodeInvalidParameterValue, "invalid experiment id "+id)
	}
	return uint(n), nil
}

// GetOrCreateExperiment implements tracking.Client.
func (s *Store) GetOrCreateExperiment(ctx context.Context, name string) (*tracking.Experiment, error) {
	const op = "experiments/get-or-create"
	var exp Experiment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&exp).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		exp = Experiment{Name: name, LifecycleStage: "active", CreationTime: tracking.Now()}
		if err := tx.Create(&exp).Error; err != nil {
			return err
		}
		exp.ArtifactLocation = s.artifactRoot + "/" + strconv.FormatUint(uint64(exp.ID), 10)
		return tx.Model(&exp).Update("artifact_location", exp.ArtifactLocation).Error
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return exp.toAPI(), nil
}

// CreateRun implements tracking.Client.
func (s *Store) CreateRun(ctx context.Context, experimentID string) (*tracking.Run, error) {
	const op = "runs/create"
	expID, err := parseExperimentID(op, experimentID)
	if err != nil {
		return nil, err
	}

	var exp Experiment
	if err := s.db.WithContext(ctx).First(&exp, expID).Error; err != nil {
		return nil, wrap(op, err, "experiment "+experimentID+" not found")
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	run := Run{
		RunID:        id,
		ExperimentID: expID,
		Status:       string(tracking.RunRunning),
		ArtifactURI:  exp.ArtifactLocation + "/" + id + "/artifacts",
		StartTime:    tracking.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return run.toAPI(), nil
}

// GetRun implements tracking.Client.
func (s *Store) GetRun(ctx context.Context, runID string) (*tracking.Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, wrap("runs/get", err, "run "+runID+" not found")
	}
	return run.toAPI(), nil
}

// SetTags implements tracking.Client as an upsert.
func (s *Store) SetTags(ctx context.Context, runID string, tags []tracking.Tag) error {
	const op = "runs/set-tags"
	if len(tags) == 0 {
		return nil
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}
	rows := make([]Tag, len(tags))
	for i, t := range tags {
		rows[i] = Tag{RunID: runID, Key: t.Key, Value: t.Value}
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rows).Error
	return errors.WrapRegistryError(op, err)
}

// LogMetric implements tracking.Client.
func (s *Store) LogMetric(ctx context.Context, runID string, m tracking.Metric) error {
	const op = "runs/log-metric"
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}
	if m.Timestamp == 0 {
		m.Timestamp = tracking.Now()
	}
	row := Metric{RunID: runID, Key: m.Key, Value: m.Value, Timestamp: m.Timestamp, Step: m.Step}
	return errors.WrapRegistryError(op, s.db.WithContext(ctx).Create(&row).Error)
}

// UpdateRun implements tracking.Client.
func (s *Store) UpdateRun(ctx context.Context, runID string, status tracking.RunStatus, endTime int64) error {
	const op = "runs/update"
	res := s.db.WithContext(ctx).Model(&Run{}).Where("run_id = ?", runID).
		Updates(map[string]interface{}{"status": string(status), "end_time": endTime})
	if res.Error != nil {
		return errors.WrapRegistryError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(op, "run "+runID+" not found")
	}
	return nil
}

// CreateRegisteredModel implements tracking.Client.
func (s *Store) CreateRegisteredModel(ctx context.Context, name string) (*tracking.RegisteredModel, error) {
	const op = "registered-models/create"
	now := tracking.Now()
	rm := RegisteredModel{Name: name, CreationTime: now, LastUpdatedTime: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rm).Error
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&rm).Error; err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return rm.toAPI(), nil
}

// CreateModelVersion implements tracking.Client. The registered model row
// is locked while the next version number is allocated.
func (s *Store) CreateModelVersion(ctx context.Context, name, source, runID string) (*tracking.ModelVersion, error) {
	const op = "model-versions/create"
	var created ModelVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rm RegisteredModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).First(&rm).Error; err != nil {
			return wrap(op, err, "registered model "+name+" not found")
		}

		var rows []ModelVersion
		if err := tx.Where("name = ?", name).Find(&rows).Error; err != nil {
			return err
		}
		existing := make([]tracking.ModelVersion, len(rows))
		for i, r := range rows {
			existing[i] = r.toAPI()
		}

		now := tracking.Now()
		created = ModelVersion{
			Name:            name,
			Version:         tracking.NextVersion(existing),
			CreationTime:    now,
			LastUpdatedTime: now,
			CurrentStage:    tracking.StageNone,
			Source:          source,
			RunID:           runID,
			Status:          tracking.VersionReady,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return tx.Model(&rm).Update("last_updated_time", now).Error
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	mv := created.toAPI()
	s.logger.Info("model version created", log.ModelNameKey, name, log.ModelVersionKey, mv.Version)
	return &mv, nil
}

// GetModelVersion implements tracking.Client.
func (s *Store) GetModelVersion(ctx context.Context, name string, version int) (*tracking.ModelVersion, error) {
	var row ModelVersion
	err := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).First(&row).Error
	if err != nil {
		return nil, wrap("model-versions/get", err, fmt.Sprintf("model version %s/%d not found", name, version))
	}
	mv := row.toAPI()
	return &mv, nil
}

// TransitionModelVersionStage implements tracking.Client.
func (s *Store) TransitionModelVersionStage(ctx context.Context, name string, version int, stage string, archiveExisting bool) (*tracking.ModelVersion, error) {
	const op = "model-versions/transition-stage"
	var result *tracking.ModelVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []ModelVersion
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).Find(&rows).Error; err != nil {
			return err
		}
		versions := make([]tracking.ModelVersion, len(rows))
		for i, r := range rows {
			versions[i] = r.toAPI()
		}

		mv, err := tracking.ApplyTransition(versions, version, stage, archiveExisting, tracking.Now())
		if err != nil {
			return err
		}
		for i, v := range versions {
			if v.Version != version && v.CurrentStage == rows[i].CurrentStage {
				continue
			}
			row := versionFromAPI(v)
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		result = mv
		return nil
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	s.logger.Info("model version transitioned",
		log.ModelNameKey, name,
		log.ModelVersionKey, version,
		log.ModelStageKey, result.CurrentStage,
	)
	return result, nil
}

// GetLatestVersions implements tracking.Client.
func (s *Store) GetLatestVersions(ctx context.Context, name string, stages []string) ([]tracking.ModelVersion, error) {
	const op = "registered-models/get-latest-versions"
	var rm RegisteredModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&rm).Error; err != nil {
		return nil, wrap(op, err, "registered model "+name+" not found")
	}
	var rows []ModelVersion
	if err := s.db.WithContext(ctx).Where("name = ?", name).Order("version").Find(&rows).Error; err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	versions := make([]tracking.ModelVersion, len(rows))
	for i, r := range rows {
		versions[i] = r.toAPI()
	}
	return tracking.LatestPerStage(versions, stages), nil
}
