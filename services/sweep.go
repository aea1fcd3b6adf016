package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ObjectKeyPrefix ist der Bucket-Prefix, unter dem Uploads abgelegt
// werden. Der Sweep fasst nur Keys unter diesem Prefix an.
const ObjectKeyPrefix = "papers/"

// SweepMinAge schützt frisch hochgeladene Objekte: zwischen Upload und
// Submit ist ein Objekt kurzzeitig unreferenziert und darf nicht als
// verwaist gelten.
const SweepMinAge = 24 * time.Hour

// SweepService räumt verwaiste Objekte auf: ein Reject toleriert einen
// fehlgeschlagenen Objekt-Löschvorgang, daher können im Bucket Objekte
// ohne zugehörigen Paper-Datensatz zurückbleiben. Läuft zeitgesteuert.
type SweepService struct {
	Papers  PaperRepository
	Objects ObjectStore
	Log     *zap.Logger

	// Now ist in Tests übersteuerbar.
	Now func() time.Time
}

func NewSweepService(papers PaperRepository, objects ObjectStore, log *zap.Logger) *SweepService {
	return &SweepService{Papers: papers, Objects: objects, Log: log, Now: time.Now}
}

// Run löscht alle Objekte unter ObjectKeyPrefix, die älter als
// SweepMinAge sind und auf die kein Paper mehr zeigt. Gibt die Anzahl
// gelöschter Objekte zurück.
func (s *SweepService) Run(ctx context.Context) (int, error) {
	objects, err := s.Objects.ListObjects(ctx, ObjectKeyPrefix)
	if err != nil {
		return 0, err
	}

	referenced, err := s.Papers.AllFileKeys(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		live[key] = struct{}{}
	}

	cutoff := s.Now().Add(-SweepMinAge)
	removed := 0
	for _, obj := range objects {
		if _, ok := live[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := s.Objects.Delete(ctx, obj.Key); err != nil {
			s.Log.Warn("Failed to delete orphaned object", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.Log.Info("Orphan sweep removed objects", zap.Int("removed", removed))
	}
	return removed, nil
}
