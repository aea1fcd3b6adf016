package services

import (
	"context"
	"errors"
	"time"

	"paper-vault/models"

	"gorm.io/gorm"
)

// PaperRepository ist die Persistenz-Schnittstelle für Paper-Datensätze.
// Die Produktiv-Implementierung läuft über GORM/Postgres; Tests hängen
// eine In-Memory-Variante dahinter.
type PaperRepository interface {
	Create(ctx context.Context, paper *models.Paper) error
	ByID(ctx context.Context, id uint) (*models.Paper, error)
	Query(ctx context.Context, filter PaperFilter, page Page) ([]models.Paper, int64, error)
	SetApproval(ctx context.Context, id uint, approved bool) (*models.Paper, error)
	DeleteByID(ctx context.Context, id uint) error
	AllFileKeys(ctx context.Context) ([]string, error)
	ApprovedCountsByUploader(ctx context.Context, limit int) ([]UploaderCount, error)
}

// UserRepository ist die Persistenz-Schnittstelle für User-Datensätze.
type UserRepository interface {
	ByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	ByEmails(ctx context.Context, emails []string) ([]models.User, error)
}

// ObjectStore ist die Schnittstelle zum Binär-Speicher. Delete und
// ListObjects benötigen die Service-Credential-Stufe.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo beschreibt ein Objekt im Bucket.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// UploaderCount ist eine Gruppierungszeile der Contribution-Aggregation.
type UploaderCount struct {
	UploadedBy string
	Count      int64
}

// GormPaperRepository implementiert PaperRepository über GORM.
type GormPaperRepository struct {
	DB *gorm.DB
}

func NewGormPaperRepository(db *gorm.DB) *GormPaperRepository {
	return &GormPaperRepository{DB: db}
}

func (r *GormPaperRepository) Create(ctx context.Context, paper *models.Paper) error {
	return r.DB.WithContext(ctx).Create(paper).Error
}

func (r *GormPaperRepository) ByID(ctx context.Context, id uint) (*models.Paper, error) {
	var paper models.Paper
	if err := r.DB.WithContext(ctx).First(&paper, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &paper, nil
}

func (r *GormPaperRepository) Query(ctx context.Context, filter PaperFilter, page Page) ([]models.Paper, int64, error) {
	query := r.DB.WithContext(ctx).Model(&models.Paper{})
	query = query.Where("admin_approved = ?", filter.Approved)
	if filter.Semester != nil {
		query = query.Where("semester = ?", *filter.Semester)
	}
	if filter.Year != nil {
		query = query.Where("year = ?", *filter.Year)
	}
	if filter.Subject != "" {
		query = query.Where("subject ILIKE ?", "%"+filter.Subject+"%")
	}
	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}
	if filter.Program != "" {
		query = query.Where("program ILIKE ?", "%"+filter.Program+"%")
	}
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var papers []models.Paper
	err := query.Order("created_at desc").Offset(page.Offset).Limit(page.Limit).Find(&papers).Error
	if err != nil {
		return nil, 0, err
	}
	return papers, total, nil
}

func (r *GormPaperRepository) SetApproval(ctx context.Context, id uint, approved bool) (*models.Paper, error) {
	res := r.DB.WithContext(ctx).Model(&models.Paper{}).Where("id = ?", id).Update("admin_approved", approved)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.ByID(ctx, id)
}

func (r *GormPaperRepository) DeleteByID(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Paper{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormPaperRepository) AllFileKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.DB.WithContext(ctx).Model(&models.Paper{}).Pluck("file_key", &keys).Error
	return keys, err
}

func (r *GormPaperRepository) ApprovedCountsByUploader(ctx context.Context, limit int) ([]UploaderCount, error) {
	var rows []UploaderCount
	err := r.DB.WithContext(ctx).Model(&models.Paper{}).
		Select("uploaded_by, count(*) as count").
		Where("admin_approved = ?", true).
		Group("uploaded_by").
		Order("count desc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// GormUserRepository implementiert UserRepository über GORM.
type GormUserRepository struct {
	DB *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{DB: db}
}

func (r *GormUserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *GormUserRepository) Save(ctx context.Context, user *models.User) error {
	return r.DB.WithContext(ctx).Save(user).Error
}

func (r *GormUserRepository) ByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	var users []models.User
	err := r.DB.WithContext(ctx).Where("email IN ?", emails).Find(&users).Error
	return users, err
}
