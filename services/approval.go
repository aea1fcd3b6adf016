package services

import (
	"context"
	"strings"

	"paper-vault/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ApprovalService ist die Zustandsmaschine der Moderation:
//
//	Pending --Approve--> Approved
//	Pending --Reject--> Purged (kein Datensatz, kein Objekt)
//
// Submit legt den Pending-Zustand an, Approve setzt nur das Flag,
// Reject löscht erst das Objekt (Service-Credentials), dann den
// Datensatz. Ein fehlgeschlagener Objekt-Löschvorgang bricht den Reject
// bewusst nicht ab: ein verwaistes Objekt ist billiger als ein dauerhaft
// hängender Pending-Eintrag, und der Orphan-Sweep räumt später auf.
type ApprovalService struct {
	Papers  PaperRepository
	Objects ObjectStore
	Log     *zap.Logger

	// Zählt Rejects, deren Objekt-Löschung fehlschlug. Optional.
	Inconsistencies prometheus.Counter
}

func NewApprovalService(papers PaperRepository, objects ObjectStore, log *zap.Logger) *ApprovalService {
	return &ApprovalService{Papers: papers, Objects: objects, Log: log}
}

// Submit legt eine neue Einreichung im Pending-Zustand an. Der Aufrufer
// muss angemeldet sein (beliebige Rolle); Uploader und Approval-Flag
// kommen niemals aus dem Request, sondern aus der Session bzw. fix.
func (s *ApprovalService) Submit(ctx context.Context, claims *Claims, sub Submission) (*models.Paper, error) {
	if claims == nil || claims.Email == "" {
		return nil, ErrAuthRequired
	}
	if verr := sub.Validate(); verr != nil {
		return nil, verr
	}

	paper := &models.Paper{
		Title:         strings.TrimSpace(sub.Title),
		Subject:       strings.TrimSpace(sub.Subject),
		Semester:      sub.Semester,
		Year:          sub.Year,
		Department:    strings.TrimSpace(sub.Specialization),
		Program:       strings.TrimSpace(sub.Program),
		URL:           strings.TrimSpace(sub.URL),
		FileKey:       sub.FileName,
		UploadedBy:    claims.Email,
		AdminApproved: false,
	}
	if err := s.Papers.Create(ctx, paper); err != nil {
		s.Log.Error("Failed to create paper", zap.String("uploader", claims.Email), zap.Error(err))
		return nil, err
	}
	s.Log.Info("Paper submitted",
		zap.Uint("id", paper.ID),
		zap.String("subject", paper.Subject),
		zap.String("uploader", paper.UploadedBy))
	return paper, nil
}

// Approve setzt das Approval-Flag. Idempotent: ein zweiter Approve auf
// demselben Paper ist ein No-op-Erfolg.
func (s *ApprovalService) Approve(ctx context.Context, claims *Claims, id uint) (*models.Paper, error) {
	if err := s.authorize(claims); err != nil {
		return nil, err
	}
	paper, err := s.Papers.SetApproval(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.Log.Info("Paper approved", zap.Uint("id", id), zap.String("admin", claims.Email))
	return paper, nil
}

// Reject entfernt ein Paper endgültig: erst das Objekt im Bucket, dann
// der Datensatz. Die Antwort wird aus dem vorab gelesenen Snapshot
// gebaut, da der Datensatz danach nicht mehr existiert. Ein zweiter
// Reject auf derselben ID liefert ErrNotFound; das ist gewollt.
func (s *ApprovalService) Reject(ctx context.Context, claims *Claims, id uint) (*models.Paper, error) {
	if err := s.authorize(claims); err != nil {
		return nil, err
	}

	snapshot, err := s.Papers.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.Objects.Delete(ctx, snapshot.FileKey); err != nil {
		// Nicht abbrechen: der Datensatz-Löschvorgang definiert den
		// Zustand, das Objekt holt der Sweep.
		s.Log.Warn("Object delete failed during reject, record delete proceeds",
			zap.Uint("id", id),
			zap.String("file_key", snapshot.FileKey),
			zap.Error(err))
		if s.Inconsistencies != nil {
			s.Inconsistencies.Inc()
		}
	}

	if err := s.Papers.DeleteByID(ctx, id); err != nil {
		return nil, err
	}
	s.Log.Info("Paper rejected and purged",
		zap.Uint("id", id),
		zap.String("file_key", snapshot.FileKey),
		zap.String("admin", claims.Email))
	return snapshot, nil
}

// authorize unterscheidet "nicht angemeldet" (401) von "angemeldet ohne
// Admin-Rolle" (403). Die Rolle stammt aus den per Request
// aufgefrischten Claims.
func (s *ApprovalService) authorize(claims *Claims) error {
	if claims == nil || claims.Email == "" {
		return ErrAuthRequired
	}
	if claims.Role != models.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}
