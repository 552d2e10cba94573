package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

var eventSortFields = map[string]string{
	"date":          "date",
	"name":          "name",
	"createdAt":     "created_at",
	"membersNeeded": "members_needed",
	"status":        "status",
}

// eventFilter builds the query document for an event listing.
func eventFilter(f store.EventFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Temple != nil {
		filter["temple"] = *f.Temple
	}
	if f.StartDate != nil || f.EndDate != nil {
		date := bson.M{}
		if f.StartDate != nil {
			date["$gte"] = *f.StartDate
		}
		if f.EndDate != nil {
			date["$lte"] = *f.EndDate
		}
		filter["date"] = date
	}
	var and []bson.M
	if f.Search != "" {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"name": regex(f.Search)},
			bson.M{"location": regex(f.Search)},
		}})
	}
	if f.Participant != nil {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"created_by": *f.Participant},
			bson.M{"members_joined.user": *f.Participant},
		}})
	}
	if len(and) > 0 {
		filter["$and"] = and
	}
	return filter
}

// joinFilter matches the event only while a join by userID is still legal:
// upcoming, not yet on the roster, and roster below capacity.
func joinFilter(eventID, userID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":                 eventID,
		"status":              models.EventUpcoming,
		"members_joined.user": bson.M{"$ne": userID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$members_joined", bson.A{}}}},
			"$members_needed",
		}},
	}
}

func eventPatchSet(p models.EventPatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.LocationURL != nil {
		set["location_url"] = *p.LocationURL
	}
	if p.Temple != nil {
		set["temple"] = *p.Temple
	}
	if p.Date != nil {
		set["date"] = *p.Date
	}
	if p.Time != nil {
		set["time"] = *p.Time
	}
	if p.Duration != nil {
		set["duration"] = *p.Duration
	}
	if p.MembersNeeded != nil {
		set["members_needed"] = *p.MembersNeeded
	}
	if p.Instruments != nil {
		set["instruments"] = p.Instruments
	}
	if p.FoodRequired != nil {
		set["food_required"] = *p.FoodRequired
	}
	if p.FoodType != nil {
		set["food_type"] = *p.FoodType
	}
	if p.Notes != nil {
		set["notes"] = *p.Notes
	}
	if p.Guru != nil {
		set["guru"] = *p.Guru
	}
	if p.ThevaramPathigam != nil {
		set["thevaram_pathigam"] = p.ThevaramPathigam
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Tags != nil {
		set["tags"] = p.Tags
	}
	if p.IsPublic != nil {
		set["is_public"] = *p.IsPublic
	}
	if p.Images != nil {
		set["images"] = p.Images
	}
	return set
}

// ---------------- EVENTS ----------------

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	_, err := s.col(colEvents).InsertOne(ctx, event)
	return mapErr(err)
}

func (s *Store) GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var event models.Event
	if err := s.col(colEvents).FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		return nil, mapErr(err)
	}
	return &event, nil
}

func (s *Store) ListEvents(ctx context.Context, f store.EventFilter) ([]models.Event, int64, error) {
	sort := sortDoc(f.Sort, eventSortFields, bson.D{{Key: "date", Value: -1}})
	return list[models.Event](ctx, s.col(colEvents), eventFilter(f), findOptions(f.Page, sort))
}

func (s *Store) EventIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := eventFilter(store.EventFilter{Participant: &userID})
	cursor, err := s.col(colEvents).Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *Store) UpdateEvent(ctx context.Context, id primitive.ObjectID, patch models.EventPatch, at time.Time) (*models.Event, error) {
	return updateAndFetch[models.Event](ctx, s.col(colEvents), bson.M{"_id": id}, bson.M{"$set": eventPatchSet(patch, at)})
}

func (s *Store) DeleteEvent(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colEvents), bson.M{"_id": id})
}

func (s *Store) AddMember(ctx context.Context, eventID primitive.ObjectID, m models.Member) (bool, error) {
	res, err := s.col(colEvents).UpdateOne(ctx, joinFilter(eventID, m.User), bson.M{
		"$push": bson.M{"members_joined": m},
		"$set":  bson.M{"updated_at": m.JoinedAt},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) RemoveMember(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	res, err := s.col(colEvents).UpdateOne(ctx,
		bson.M{"_id": eventID, "members_joined.user": userID},
		bson.M{
			"$pull": bson.M{"members_joined": bson.M{"user": userID}},
			"$set":  bson.M{"updated_at": time.Now()},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) AddEventImages(ctx context.Context, eventID primitive.ObjectID, images []models.Image) (*models.Event, error) {
	return updateAndFetch[models.Event](ctx, s.col(colEvents), bson.M{"_id": eventID}, bson.M{
		"$push": bson.M{"images": bson.M{"$each": images}},
		"$set":  bson.M{"updated_at": time.Now()},
	})
}
