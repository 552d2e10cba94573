package mongostore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

// ---------------- USERS ----------------

func userPatchSet(p models.UserPatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.Temple != nil {
		set["temple"] = *p.Temple
	}
	return set
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = strings.ToLower(user.Email)
	_, err := s.col(colUsers).InsertOne(ctx, user)
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.col(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// UsersByIDs projects only the display fields.
func (s *Store) UsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	cursor, err := s.col(colUsers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "role": 1}))
	if err != nil {
		return nil, err
	}
	out := []models.User{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col(colUsers).FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Search != "" {
		filter["$or"] = bson.A{bson.M{"name": regex(f.Search)}, bson.M{"email": regex(f.Search)}}
	}
	return list[models.User](ctx, s.col(colUsers), filter, findOptions(f.Page, bson.D{{Key: "name", Value: 1}}))
}

func (s *Store) UpdateUser(ctx context.Context, id primitive.ObjectID, patch models.UserPatch, at time.Time) (*models.User, error) {
	return updateAndFetch[models.User](ctx, s.col(colUsers), bson.M{"_id": id}, bson.M{"$set": userPatchSet(patch, at)})
}

func (s *Store) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colUsers), bson.M{"_id": id})
}

// ---------------- TEMPLES ----------------

func templeFilter(f store.TempleFilter) bson.M {
	filter := bson.M{}
	if f.City != "" {
		filter["location.city"] = equalFold(f.City)
	}
	if f.State != "" {
		filter["location.state"] = equalFold(f.State)
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		filter["$or"] = bson.A{bson.M{"name": regex(f.Search)}, bson.M{"description": regex(f.Search)}}
	}
	return filter
}

func (s *Store) CreateTemple(ctx context.Context, temple *models.Temple) error {
	if temple.ID.IsZero() {
		temple.ID = primitive.NewObjectID()
	}
	_, err := s.col(colTemples).InsertOne(ctx, temple)
	return mapErr(err)
}

func (s *Store) GetTemple(ctx context.Context, id primitive.ObjectID) (*models.Temple, error) {
	var temple models.Temple
	if err := s.col(colTemples).FindOne(ctx, bson.M{"_id": id}).Decode(&temple); err != nil {
		return nil, mapErr(err)
	}
	return &temple, nil
}

func (s *Store) ListTemples(ctx context.Context, f store.TempleFilter) ([]models.Temple, int64, error) {
	return list[models.Temple](ctx, s.col(colTemples), templeFilter(f), findOptions(f.Page, bson.D{{Key: "name", Value: 1}}))
}

// UpdateTemple applies the patch to the stored document and replaces it.
func (s *Store) UpdateTemple(ctx context.Context, id primitive.ObjectID, patch models.TemplePatch, at time.Time) (*models.Temple, error) {
	temple, err := s.GetTemple(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(temple)
	temple.UpdatedAt = at
	if err := replaceOne(ctx, s.col(colTemples), id, temple); err != nil {
		return nil, err
	}
	return temple, nil
}

func (s *Store) DeleteTemple(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colTemples), bson.M{"_id": id})
}

// ---------------- PATHIGAMS ----------------

var pathigamSortFields = map[string]string{
	"views":          "views",
	"title":          "title",
	"pathigamNumber": "pathigam_number",
	"createdAt":      "created_at",
}

func pathigamFilter(f store.PathigamFilter) bson.M {
	filter := bson.M{}
	if f.Guru != "" {
		filter["guru"] = f.Guru
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		filter["$or"] = bson.A{
			bson.M{"title": regex(f.Search)},
			bson.M{"title_tamil": regex(f.Search)},
			bson.M{"content": regex(f.Search)},
		}
	}
	return filter
}

func (s *Store) CreatePathigam(ctx context.Context, p *models.Pathigam) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.col(colPathigams).InsertOne(ctx, p)
	return mapErr(err)
}

func (s *Store) GetPathigam(ctx context.Context, id primitive.ObjectID) (*models.Pathigam, error) {
	var p models.Pathigam
	if err := s.col(colPathigams).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) ListPathigams(ctx context.Context, f store.PathigamFilter) ([]models.Pathigam, int64, error) {
	sort := sortDoc(f.Sort, pathigamSortFields, bson.D{{Key: "created_at", Value: -1}})
	return list[models.Pathigam](ctx, s.col(colPathigams), pathigamFilter(f), findOptions(f.Page, sort))
}

func (s *Store) UpdatePathigam(ctx context.Context, id primitive.ObjectID, patch models.PathigamPatch, at time.Time) (*models.Pathigam, error) {
	p, err := s.GetPathigam(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(p)
	p.UpdatedAt = at
	if err := replaceOne(ctx, s.col(colPathigams), id, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) DeletePathigam(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colPathigams), bson.M{"_id": id})
}

func (s *Store) IncrementPathigamViews(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col(colPathigams).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ToggleLike first tries to pull an existing like; when nothing was pulled it
// pushes a new one guarded against a concurrent duplicate.
func (s *Store) ToggleLike(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error) {
	col := s.col(colPathigams)
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": id, "likes.user": userID},
		bson.M{"$pull": bson.M{"likes": bson.M{"user": userID}}})
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return false, nil
	}
	res, err = col.UpdateOne(ctx,
		bson.M{"_id": id, "likes.user": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"likes": models.Like{User: userID, LikedAt: at}}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetPathigam(ctx, id); err != nil {
			return false, err
		}
	}
	return true, nil
}

func replaceOne(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, doc any) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace())
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
