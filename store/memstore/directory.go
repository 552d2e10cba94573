package memstore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

// ---------------- USERS ----------------

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return store.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *Store) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *Store) UsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, f store.UserFilter) ([]models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Search != "" && !containsFold(u.Name, f.Search) && !containsFold(u.Email, f.Search) {
			continue
		}
		out = append(out, *u)
	}
	sortBy(out, nil, "name", func(a, b *models.User, field string) (bool, bool) {
		return a.Name < b.Name, field == "name"
	})
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *Store) UpdateUser(_ context.Context, id primitive.ObjectID, patch models.UserPatch, at time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(u)
	u.UpdatedAt = at
	c := *u
	return &c, nil
}

func (s *Store) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// ---------------- TEMPLES ----------------

func cloneTemple(t *models.Temple) *models.Temple {
	c := *t
	c.Facilities = append([]string(nil), t.Facilities...)
	c.Images = append([]models.Image(nil), t.Images...)
	c.Tags = append([]string(nil), t.Tags...)
	c.Deity.Secondary = append([]string(nil), t.Deity.Secondary...)
	return &c
}

func (s *Store) CreateTemple(_ context.Context, temple *models.Temple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if temple.ID.IsZero() {
		temple.ID = primitive.NewObjectID()
	}
	s.temples[temple.ID] = cloneTemple(temple)
	return nil
}

func (s *Store) GetTemple(_ context.Context, id primitive.ObjectID) (*models.Temple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.temples[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTemple(t), nil
}

func (s *Store) ListTemples(_ context.Context, f store.TempleFilter) ([]models.Temple, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Temple
	for _, t := range s.temples {
		if f.City != "" && !strings.EqualFold(t.Location.City, f.City) {
			continue
		}
		if f.State != "" && !strings.EqualFold(t.Location.State, f.State) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Search != "" && !containsFold(t.Name, f.Search) && !containsFold(t.Description, f.Search) {
			continue
		}
		out = append(out, *cloneTemple(t))
	}
	sortBy(out, nil, "name", func(a, b *models.Temple, field string) (bool, bool) {
		return a.Name < b.Name, field == "name"
	})
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *Store) UpdateTemple(_ context.Context, id primitive.ObjectID, patch models.TemplePatch, at time.Time) (*models.Temple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.temples[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(t)
	t.UpdatedAt = at
	return cloneTemple(t), nil
}

func (s *Store) DeleteTemple(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.temples[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.temples, id)
	return nil
}

// ---------------- PATHIGAMS ----------------

func clonePathigam(p *models.Pathigam) *models.Pathigam {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Likes = append([]models.Like(nil), p.Likes...)
	return &c
}

func (s *Store) CreatePathigam(_ context.Context, p *models.Pathigam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.pathigams[p.ID] = clonePathigam(p)
	return nil
}

func (s *Store) GetPathigam(_ context.Context, id primitive.ObjectID) (*models.Pathigam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pathigams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clonePathigam(p), nil
}

func lessPathigam(a, b *models.Pathigam, field string) (bool, bool) {
	switch field {
	case "views":
		return a.Views < b.Views, true
	case "title":
		return a.Title < b.Title, true
	case "pathigamNumber":
		return a.PathigamNumber < b.PathigamNumber, true
	case "createdAt":
		return a.CreatedAt.Before(b.CreatedAt), true
	}
	return false, false
}

func (s *Store) ListPathigams(_ context.Context, f store.PathigamFilter) ([]models.Pathigam, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Pathigam
	for _, p := range s.pathigams {
		if f.Guru != "" && p.Guru != f.Guru {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Search != "" && !containsFold(p.Title, f.Search) && !containsFold(p.TitleTamil, f.Search) &&
			!containsFold(p.Content, f.Search) {
			continue
		}
		out = append(out, *clonePathigam(p))
	}
	sortBy(out, f.Sort, "-createdAt", lessPathigam)
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *Store) UpdatePathigam(_ context.Context, id primitive.ObjectID, patch models.PathigamPatch, at time.Time) (*models.Pathigam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pathigams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(p)
	p.UpdatedAt = at
	return clonePathigam(p), nil
}

func (s *Store) DeletePathigam(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pathigams[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.pathigams, id)
	return nil
}

func (s *Store) IncrementPathigamViews(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pathigams[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Views++
	return nil
}

func (s *Store) ToggleLike(_ context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pathigams[id]
	if !ok {
		return false, store.ErrNotFound
	}
	for i, l := range p.Likes {
		if l.User == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return false, nil
		}
	}
	p.Likes = append(p.Likes, models.Like{User: userID, LikedAt: at})
	return true, nil
}
