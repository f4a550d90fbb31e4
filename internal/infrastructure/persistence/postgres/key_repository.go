package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// keyRecord is the row layout of the cluster_keys table.
type keyRecord struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	Purpose       string    `gorm:"size:64;not null;uniqueIndex:idx_cluster_keys_purpose_key_id,priority:1"`
	KeyID         int64     `gorm:"column:key_id;not null;uniqueIndex:idx_cluster_keys_purpose_key_id,priority:2"`
	KeyMaterial   []byte    `gorm:"not null"`
	ExpiresAtSecs uint32    `gorm:"not null"`
	ExpiresAtInc  uint32    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName pins the table name.
func (keyRecord) TableName() string {
	return "cluster_keys"
}

func recordFromDocument(doc *models.KeyDocument) *keyRecord {
	return &keyRecord{
		Purpose:       doc.Purpose,
		KeyID:         doc.KeyID,
		KeyMaterial:   append([]byte(nil), doc.Key...),
		ExpiresAtSecs: doc.ExpiresAt.Secs,
		ExpiresAtInc:  doc.ExpiresAt.Inc,
	}
}

func (r *keyRecord) toDocument() *models.KeyDocument {
	return models.NewKeyDocument(r.KeyID, r.Purpose, r.KeyMaterial, models.NewLogicalTime(r.ExpiresAtSecs, r.ExpiresAtInc))
}

// KeyRepository is a gorm implementation of repository.KeyRepository.
// It works on PostgreSQL in production and on SQLite for single-node runs.
type KeyRepository struct {
	db *gorm.DB
}

var (
	_ repository.KeyRepository = (*KeyRepository)(nil)
	_ repository.HealthChecker = (*KeyRepository)(nil)
)

// NewKeyRepository creates a new KeyRepository.
func NewKeyRepository(db *gorm.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

// AutoMigrate creates or updates the cluster_keys table.
func (r *KeyRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&keyRecord{}); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "migrate cluster_keys")
	}
	return nil
}

// FindAll retrieves every key of purpose ordered by key id.
func (r *KeyRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	var records []keyRecord
	err := r.db.WithContext(ctx).
		Where("purpose = ?", purpose).
		Order("key_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "find keys")
	}

	docs := make([]*models.KeyDocument, 0, len(records))
	for i := range records {
		docs = append(docs, records[i].toDocument())
	}
	return docs, nil
}

// Insert stores a new key. The unique index on (purpose, key_id) turns a
// concurrent insert of the same id by another node into duplicate_key.
func (r *KeyRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	if doc == nil {
		return errors.InvalidArgument("key document is nil")
	}
	err := r.db.WithContext(ctx).Create(recordFromDocument(doc)).Error
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return errors.DuplicateKey("key already exists").
			WithCause(err).
			WithMetadata("purpose", doc.Purpose).
			WithMetadata("key_id", doc.KeyID)
	}
	return errors.Wrap(err, errors.CodeStoreUnavailable, "insert key")
}

// Ping checks the underlying connection.
func (r *KeyRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "access sql pool")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "ping key store")
	}
	return nil
}

func isDuplicate(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

//Personal.AI order the ending
