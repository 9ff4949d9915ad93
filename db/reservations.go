package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/models"
)

var ErrNoReservation = errors.New("reservation not found")

// ReservationRepo persists reservations in one collection, keyed by "id".
type ReservationRepo struct {
	coll *mongo.Collection
}

func NewReservationRepo(coll *mongo.Collection) *ReservationRepo {
	return &ReservationRepo{coll: coll}
}

// ListActive returns every non-cancelled reservation ordered by arrival.
func (r *ReservationRepo) ListActive(ctx context.Context) ([]models.Reservation, error) {
	filter := bson.M{"status": bson.M{"$ne": models.StatusCancelled}}
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}, {Key: "id", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find reservations: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reservations: %w", err)
	}
	return out, nil
}

func (r *ReservationRepo) Get(ctx context.Context, id string) (models.Reservation, error) {
	var res models.Reservation
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return res, ErrNoReservation
	}
	if err != nil {
		return res, fmt.Errorf("find reservation %s: %w", id, err)
	}
	return res, nil
}

func (r *ReservationRepo) Insert(ctx context.Context, res models.Reservation) error {
	if _, err := r.coll.InsertOne(ctx, res); err != nil {
		return fmt.Errorf("insert reservation %s: %w", res.ID, err)
	}
	return nil
}

// Cancel flips status to cancelled and returns the updated document.
func (r *ReservationRepo) Cancel(ctx context.Context, id string) (models.Reservation, error) {
	var res models.Reservation
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"id": id, "status": bson.M{"$ne": models.StatusCancelled}},
		bson.M{"$set": bson.M{"status": models.StatusCancelled}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return res, ErrNoReservation
	}
	if err != nil {
		return res, fmt.Errorf("cancel reservation %s: %w", id, err)
	}
	return res, nil
}
