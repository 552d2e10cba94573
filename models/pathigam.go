package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PathigamStatus string

const (
	PathigamDraft         PathigamStatus = "draft"
	PathigamPendingReview PathigamStatus = "pending_review"
	PathigamPublished     PathigamStatus = "published"
	PathigamArchived      PathigamStatus = "archived"
)

func (s PathigamStatus) Valid() bool {
	switch s {
	case PathigamDraft, PathigamPendingReview, PathigamPublished, PathigamArchived:
		return true
	}
	return false
}

type Like struct {
	User    primitive.ObjectID `bson:"user" json:"user"`
	LikedAt time.Time          `bson:"liked_at" json:"likedAt"`
}

// Pathigam is a Thevaram hymn with its Tamil text, translation and transliteration.
type Pathigam struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	TitleTamil      string             `bson:"title_tamil" json:"titleTamil"`
	Content         string             `bson:"content" json:"content"`
	ContentTamil    string             `bson:"content_tamil" json:"contentTamil"`
	Transliteration string             `bson:"transliteration" json:"transliteration"`
	AudioURL        string             `bson:"audio_url,omitempty" json:"audioUrl,omitempty"`
	Guru            string             `bson:"guru,omitempty" json:"guru,omitempty"`
	Category        string             `bson:"category" json:"category"` // thevaram, guru-pathigam
	Tags            []string           `bson:"tags" json:"tags"`
	PathigamNumber  int                `bson:"pathigam_number,omitempty" json:"pathigamNumber,omitempty"`
	VerseCount      int                `bson:"verse_count,omitempty" json:"verseCount,omitempty"`
	Raga            string             `bson:"raga,omitempty" json:"raga,omitempty"`
	Tala            string             `bson:"tala,omitempty" json:"tala,omitempty"`
	Difficulty      string             `bson:"difficulty" json:"difficulty"`
	Status          PathigamStatus     `bson:"status" json:"status"`
	Views           int                `bson:"views" json:"views"`
	Likes           []Like             `bson:"likes" json:"likes"`
	CreatedBy       primitive.ObjectID `bson:"created_by" json:"createdBy"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (p *Pathigam) HasLiked(userID primitive.ObjectID) bool {
	for _, l := range p.Likes {
		if l.User == userID {
			return true
		}
	}
	return false
}

type PathigamPatch struct {
	Title           *string
	TitleTamil      *string
	Content         *string
	ContentTamil    *string
	Transliteration *string
	AudioURL        *string
	Guru            *string
	Category        *string
	Tags            []string
	PathigamNumber  *int
	VerseCount      *int
	Raga            *string
	Tala            *string
	Difficulty      *string
	Status          *PathigamStatus
}

func (p PathigamPatch) Empty() bool {
	return p.Title == nil && p.TitleTamil == nil && p.Content == nil && p.ContentTamil == nil &&
		p.Transliteration == nil && p.AudioURL == nil && p.Guru == nil && p.Category == nil &&
		p.Tags == nil && p.PathigamNumber == nil && p.VerseCount == nil && p.Raga == nil &&
		p.Tala == nil && p.Difficulty == nil && p.Status == nil
}

func (p PathigamPatch) Apply(h *Pathigam) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&h.Title, p.Title)
	set(&h.TitleTamil, p.TitleTamil)
	set(&h.Content, p.Content)
	set(&h.ContentTamil, p.ContentTamil)
	set(&h.Transliteration, p.Transliteration)
	set(&h.AudioURL, p.AudioURL)
	set(&h.Guru, p.Guru)
	set(&h.Category, p.Category)
	set(&h.Raga, p.Raga)
	set(&h.Tala, p.Tala)
	set(&h.Difficulty, p.Difficulty)
	if p.Tags != nil {
		h.Tags = p.Tags
	}
	if p.PathigamNumber != nil {
		h.PathigamNumber = *p.PathigamNumber
	}
	if p.VerseCount != nil {
		h.VerseCount = *p.VerseCount
	}
	if p.Status != nil {
		h.Status = *p.Status
	}
}
