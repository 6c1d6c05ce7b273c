// Package trip schedules trips and reports their seat availability.
package trip

import (
	"context"
	"fmt"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/database"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/utils"
	"train-station/internal/validation"
)

type DBLayer interface {
	ListTrips(ctx context.Context, filter models.TripFilter, page utils.Page) ([]models.Trip, int, error)
	GetTrip(ctx context.Context, id int64) (*models.Trip, error)
	TakenSeats(ctx context.Context, tripID int64) ([]int, error)
	CrewForTrip(ctx context.Context, tripID int64) ([]models.Crew, error)
	CountCrews(ctx context.Context, ids []int64) (int, error)
	Exists(ctx context.Context, model interface{}, id int64) (bool, error)
	CreateTrip(ctx context.Context, trip *models.Trip, crew []int64) error
	UpdateTrip(ctx context.Context, trip *models.Trip, crew *[]int64) error
	DeleteTrip(ctx context.Context, id int64) error
}

type TripService struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewTripService(db DBLayer, log *logger.Logger) *TripService {
	return &TripService{DB: db, Logger: log}
}

// clampAvailability floors the seat count at zero. A negative count means the
// train's capacity was lowered after seats were sold.
func (s *TripService) clampAvailability(trip *models.Trip) {
	if trip.AvailableSeats < 0 {
		s.Logger.Warn("TRIP", fmt.Sprintf("Trip %d is overbooked: available seats %d", trip.ID, trip.AvailableSeats))
		trip.AvailableSeats = 0
	}
}

func (s *TripService) ListTrips(ctx context.Context, p auth.Principal, filter models.TripFilter, page utils.Page) ([]models.Trip, int, error) {
	if err := auth.Authorize(p, auth.ResourceTrip, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	trips, count, err := s.DB.ListTrips(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list trips: %w", err)
	}
	for i := range trips {
		s.clampAvailability(&trips[i])
	}
	return trips, count, nil
}

func (s *TripService) GetTrip(ctx context.Context, p auth.Principal, id int64) (*models.TripDetailView, error) {
	if err := auth.Authorize(p, auth.ResourceTrip, auth.ActionRead); err != nil {
		return nil, err
	}
	trip, err := s.DB.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	s.clampAvailability(trip)
	return s.detailView(ctx, trip)
}

func (s *TripService) detailView(ctx context.Context, trip *models.Trip) (*models.TripDetailView, error) {
	taken, err := s.DB.TakenSeats(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("taken seats of trip %d: %w", trip.ID, err)
	}
	crews, err := s.DB.CrewForTrip(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("crew of trip %d: %w", trip.ID, err)
	}

	view := &models.TripDetailView{
		ID:             trip.ID,
		DepartureTime:  trip.DepartureTime,
		ArrivalTime:    trip.ArrivalTime,
		Crew:           make([]string, 0, len(crews)),
		TakenSeats:     taken,
		AvailableSeats: trip.AvailableSeats,
	}
	if view.TakenSeats == nil {
		view.TakenSeats = []int{}
	}
	if trip.Route != nil {
		view.Route = models.NewRouteView(trip.Route)
	}
	if trip.Train != nil {
		view.Train = models.NewTrainView(trip.Train)
	}
	for _, c := range crews {
		view.Crew = append(view.Crew, c.FullName())
	}
	return view, nil
}

func (s *TripService) CreateTrip(ctx context.Context, p auth.Principal, req models.TripRequest) (*models.TripDetailView, error) {
	if err := auth.Authorize(p, auth.ResourceTrip, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	trip := &models.Trip{
		RouteID:       req.Route,
		TrainID:       req.Train,
		DepartureTime: req.DepartureTime.UTC(),
		ArrivalTime:   req.ArrivalTime.UTC(),
	}
	crew := dedupe(req.Crew)
	if err := s.checkTrip(ctx, trip, crew); err != nil {
		return nil, err
	}
	if err := s.DB.CreateTrip(ctx, trip, crew); err != nil {
		return nil, s.storeError(ctx, trip, crew, err)
	}
	s.Logger.Info("TRIP", fmt.Sprintf("Created trip %d on route %d", trip.ID, trip.RouteID))
	return s.GetTrip(ctx, p, trip.ID)
}

func (s *TripService) UpdateTrip(ctx context.Context, p auth.Principal, id int64, patch models.TripPatch, partial bool) (*models.TripDetailView, error) {
	if err := auth.Authorize(p, auth.ResourceTrip, auth.ActionWrite); err != nil {
		return nil, err
	}
	trip, err := s.DB.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Patch(patch, partial); err != nil {
		return nil, err
	}

	patch.Apply(trip)
	var crew *[]int64
	if patch.Crew != nil {
		ids := dedupe(*patch.Crew)
		crew = &ids
	} else if !partial {
		crew = &[]int64{}
	}
	var check []int64
	if crew != nil {
		check = *crew
	}
	if err := s.checkTrip(ctx, trip, check); err != nil {
		return nil, err
	}
	if err := s.DB.UpdateTrip(ctx, trip, crew); err != nil {
		return nil, s.storeError(ctx, trip, check, err)
	}
	return s.GetTrip(ctx, p, id)
}

func (s *TripService) DeleteTrip(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ResourceTrip, auth.ActionWrite); err != nil {
		return err
	}
	if err := s.DB.DeleteTrip(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("TRIP", fmt.Sprintf("Deleted trip %d", id))
	return nil
}

// storeError reports a foreign key refused by the store, after a reference
// vanished between checkTrip and the write, as the field it names.
func (s *TripService) storeError(ctx context.Context, trip *models.Trip, crew []int64, err error) error {
	if !database.IsForeignKeyViolation(err) {
		return err
	}
	if cerr := s.checkTrip(ctx, trip, crew); cerr != nil {
		return cerr
	}
	return apperr.Field("trip", apperr.ErrNotFound, "a referenced object no longer exists")
}

// checkTrip validates the time window and every reference of a trip.
func (s *TripService) checkTrip(ctx context.Context, trip *models.Trip, crew []int64) error {
	if err := validation.ValidateTrip(trip.DepartureTime, trip.ArrivalTime); err != nil {
		return err
	}

	var errs apperr.Errors
	refs := []struct {
		field string
		model interface{}
		id    int64
	}{
		{"route", (*models.Route)(nil), trip.RouteID},
		{"train", (*models.Train)(nil), trip.TrainID},
	}
	for _, ref := range refs {
		ok, err := s.DB.Exists(ctx, ref.model, ref.id)
		if err != nil {
			return err
		}
		if !ok {
			errs = append(errs, apperr.Field(ref.field, apperr.ErrNotFound, "invalid pk %d - object does not exist", ref.id))
		}
	}

	n, err := s.DB.CountCrews(ctx, crew)
	if err != nil {
		return err
	}
	if n != len(crew) {
		errs = append(errs, apperr.Field("crew", apperr.ErrNotFound, "one or more crew members do not exist"))
	}
	return errs.OrNil()
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
