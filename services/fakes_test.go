package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"paper-vault/models"
)

// In-Memory-Implementierungen der Repository-Schnittstellen für Tests.

type memPaperRepo struct {
	mu     sync.Mutex
	nextID uint
	clock  time.Time
	papers map[uint]*models.Paper

	createErr error
	byIDErr   error
	deleteErr error
}

func newMemPaperRepo() *memPaperRepo {
	return &memPaperRepo{
		nextID: 1,
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		papers: map[uint]*models.Paper{},
	}
}

func (r *memPaperRepo) Create(_ context.Context, paper *models.Paper) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	paper.ID = r.nextID
	r.nextID++
	r.clock = r.clock.Add(time.Minute)
	paper.CreatedAt = r.clock
	cp := *paper
	r.papers[paper.ID] = &cp
	return nil
}

func (r *memPaperRepo) ByID(_ context.Context, id uint) (*models.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byIDErr != nil {
		return nil, r.byIDErr
	}
	paper, ok := r.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *paper
	return &cp, nil
}

func (r *memPaperRepo) Query(_ context.Context, filter PaperFilter, page Page) ([]models.Paper, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.Paper
	for _, p := range r.papers {
		if p.AdminApproved != filter.Approved {
			continue
		}
		if filter.Semester != nil && p.Semester != *filter.Semester {
			continue
		}
		if filter.Year != nil && p.Year != *filter.Year {
			continue
		}
		if filter.Subject != "" && !containsFold(p.Subject, filter.Subject) {
			continue
		}
		if filter.Department != "" && p.Department != filter.Department {
			continue
		}
		if filter.Program != "" && !containsFold(p.Program, filter.Program) {
			continue
		}
		if filter.ID != nil && p.ID != *filter.ID {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[page.Offset:end], total, nil
}

func (r *memPaperRepo) SetApproval(_ context.Context, id uint, approved bool) (*models.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paper, ok := r.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	paper.AdminApproved = approved
	cp := *paper
	return &cp, nil
}

func (r *memPaperRepo) DeleteByID(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.papers[id]; !ok {
		return ErrNotFound
	}
	delete(r.papers, id)
	return nil
}

func (r *memPaperRepo) AllFileKeys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, p := range r.papers {
		keys = append(keys, p.FileKey)
	}
	return keys, nil
}

func (r *memPaperRepo) ApprovedCountsByUploader(_ context.Context, limit int) ([]UploaderCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, p := range r.papers {
		if p.AdminApproved {
			counts[p.UploadedBy]++
		}
	}
	var rows []UploaderCount
	for email, n := range counts {
		rows = append(rows, UploaderCount{UploadedBy: email, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].UploadedBy < rows[j].UploadedBy
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	byEmailErr error
	createErr  error
	saveErr    error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (r *memUserRepo) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byEmailErr != nil {
		return nil, r.byEmailErr
	}
	user, ok := r.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = uint(len(r.users) + 1)
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *memUserRepo) Save(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *memUserRepo) ByEmails(_ context.Context, emails []string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []models.User
	for _, email := range emails {
		if u, ok := r.users[email]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string]time.Time
	deleted []string

	uploadErr error
	deleteErr error
	listErr   error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string]time.Time{}}
}

func (s *memObjectStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.objects[key] = time.Now()
	return "https://cdn.example.com/vault/" + key, nil
}

func (s *memObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memObjectStore) ListObjects(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var infos []ObjectInfo
	for key, ts := range s.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			infos = append(infos, ObjectInfo{Key: key, LastModified: ts})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
