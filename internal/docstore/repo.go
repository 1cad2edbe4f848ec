package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("sighting not found")
	ErrNotAuthor = errors.New("not the author of this sighting")
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ListSightings returns every sighting in creation order.
func (r *Repo) ListSightings(ctx context.Context) ([]sighting.Sighting, error) {
	var out []sighting.Sighting
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CountSightings(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&sighting.Sighting{}).Count(&n).Error
	return n, err
}

func (r *Repo) GetSighting(ctx context.Context, id string) (*sighting.Sighting, error) {
	var s sighting.Sighting
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) CreateSighting(ctx context.Context, s *sighting.Sighting) error {
	prepare(s)
	return r.db.WithContext(ctx).Create(s).Error
}

// CreateSightings inserts a batch in one transaction. Sightings whose id is
// already stored, or repeated within the batch, are skipped, so resubmitting
// a batch after a lost response inserts nothing twice. It returns the
// sightings that were actually inserted.
func (r *Repo) CreateSightings(ctx context.Context, list []sighting.Sighting) ([]sighting.Sighting, error) {
	if len(list) == 0 {
		return nil, nil
	}
	for i := range list {
		prepare(&list[i])
	}
	var inserted []sighting.Sighting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, len(list))
		for i, s := range list {
			ids[i] = s.ID
		}
		var existing []string
		if err := tx.Model(&sighting.Sighting{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return err
		}
		seen := make(map[string]bool, len(list))
		for _, id := range existing {
			seen[id] = true
		}
		for _, s := range list {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			inserted = append(inserted, s)
		}
		if len(inserted) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&inserted).Error
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// UpdateIdentification sets the identification fields of a sighting. Only
// the sighting's author, matched by nickname, may do so; an empty sender is
// never the author.
func (r *Repo) UpdateIdentification(ctx context.Context, id string, upd sighting.Identification) (*sighting.Sighting, error) {
	if upd.Sender == "" {
		return nil, ErrNotAuthor
	}
	s, err := r.GetSighting(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Nickname != upd.Sender {
		return nil, ErrNotAuthor
	}

	err = r.db.WithContext(ctx).Model(s).Updates(map[string]any{
		"identification":      upd.Identification,
		"scientific_name":     upd.ScientificName,
		"dbpedia_url":         upd.DBPediaURL,
		"dbpedia_description": upd.DBPediaDescription,
	}).Error
	if err != nil {
		return nil, err
	}
	return r.GetSighting(ctx, id)
}

func (r *Repo) CreateMessage(ctx context.Context, m *sighting.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns the full chat history of a sighting, oldest first.
func (r *Repo) ListMessages(ctx context.Context, sightID string) ([]sighting.Message, error) {
	var out []sighting.Message
	if err := r.db.WithContext(ctx).
		Where("sight_id = ?", sightID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func prepare(s *sighting.Sighting) {
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}
	if s.SeenAt.IsZero() {
		s.SeenAt = time.Now()
	}
}
