package services

import (
	"context"

	"paper-vault/models"

	"go.uber.org/zap"
)

// Contributor ist ein Eintrag der Uploader-Rangliste.
type Contributor struct {
	Rank      int    `json:"rank"`
	Email     string `json:"email"`
	Count     int64  `json:"count"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	Image     string `json:"image,omitempty"`
}

// ContributionService baut die Rangliste der Uploader über alle
// freigegebenen Papers.
type ContributionService struct {
	Papers PaperRepository
	Users  UserRepository
	Log    *zap.Logger
}

func NewContributionService(papers PaperRepository, users UserRepository, log *zap.Logger) *ContributionService {
	return &ContributionService{Papers: papers, Users: users, Log: log}
}

// Rank gruppiert freigegebene Papers nach Uploader, sortiert absteigend
// nach Anzahl und reichert jede Gruppe mit Name/Avatar aus der
// users-Tabelle an. Uploader ohne User-Datensatz fallen auf den
// Local-Part der E-Mail zurück; die E-Mail-Referenz auf einem Paper ist
// nicht garantiert auflösbar.
func (s *ContributionService) Rank(ctx context.Context, limit int) ([]Contributor, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Papers.ApprovedCountsByUploader(ctx, limit)
	if err != nil {
		s.Log.Error("Contribution aggregation failed", zap.Error(err))
		return nil, err
	}

	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.UploadedBy != "" {
			emails = append(emails, row.UploadedBy)
		}
	}

	userByEmail := map[string]models.User{}
	if len(emails) > 0 {
		users, err := s.Users.ByEmails(ctx, emails)
		if err != nil {
			s.Log.Error("User join for contributions failed", zap.Error(err))
			return nil, err
		}
		for _, u := range users {
			userByEmail[u.Email] = u
		}
	}

	contributors := make([]Contributor, 0, len(rows))
	for i, row := range rows {
		c := Contributor{
			Rank:  i + 1,
			Email: row.UploadedBy,
			Count: row.Count,
		}
		if u, ok := userByEmail[row.UploadedBy]; ok {
			c.Name = u.Name
			c.Image = u.Image
		}
		if c.Name == "" {
			c.Name = FirstNameFallback(row.UploadedBy)
		}
		c.FirstName = FirstName(c.Name, row.UploadedBy)
		contributors = append(contributors, c)
	}
	return contributors, nil
}
