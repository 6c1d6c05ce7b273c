// Package network manages the reference data trips run on: train types,
// trains, stations, routes and crews.
package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/database"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/utils"
	"train-station/internal/validation"
)

type DBLayer interface {
	Exists(ctx context.Context, model interface{}, id int64) (bool, error)

	ListTrainTypes(ctx context.Context, page utils.Page) ([]models.TrainType, int, error)
	CreateTrainType(ctx context.Context, t *models.TrainType) error

	ListTrains(ctx context.Context, page utils.Page) ([]models.Train, int, error)
	GetTrain(ctx context.Context, id int64) (*models.Train, error)
	TripsForTrain(ctx context.Context, trainID int64) ([]models.Trip, error)
	CreateTrain(ctx context.Context, t *models.Train) error
	UpdateTrain(ctx context.Context, t *models.Train) error
	DeleteTrain(ctx context.Context, id int64) error

	ListStations(ctx context.Context, page utils.Page) ([]models.Station, int, error)
	GetStation(ctx context.Context, id int64) (*models.Station, error)
	CreateStation(ctx context.Context, s *models.Station) error
	SetStationImage(ctx context.Context, id int64, image string) error

	ListRoutes(ctx context.Context, filter models.RouteFilter, page utils.Page) ([]models.Route, int, error)
	GetRoute(ctx context.Context, id int64) (*models.Route, error)
	CreateRoute(ctx context.Context, r *models.Route) error
	UpdateRoute(ctx context.Context, r *models.Route) error
	DeleteRoute(ctx context.Context, id int64) error

	ListCrews(ctx context.Context, page utils.Page) ([]models.Crew, int, error)
	CreateCrew(ctx context.Context, c *models.Crew) error
}

type NetworkService struct {
	DB        DBLayer
	MediaRoot string
	Logger    *logger.Logger
}

func NewNetworkService(db DBLayer, mediaRoot string, log *logger.Logger) *NetworkService {
	return &NetworkService{DB: db, MediaRoot: mediaRoot, Logger: log}
}

// mustExist turns a dangling reference in a request body into a field error.
func (s *NetworkService) mustExist(ctx context.Context, model interface{}, field string, id int64) error {
	ok, err := s.DB.Exists(ctx, model, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Field(field, apperr.ErrNotFound, "invalid pk %d - object does not exist", id)
	}
	return nil
}

// ---------------- TRAIN TYPES ----------------

func (s *NetworkService) ListTrainTypes(ctx context.Context, p auth.Principal, page utils.Page) ([]models.TrainType, int, error) {
	if err := auth.Authorize(p, auth.ResourceTrainType, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	return s.DB.ListTrainTypes(ctx, page)
}

func (s *NetworkService) CreateTrainType(ctx context.Context, p auth.Principal, req models.TrainTypeRequest) (*models.TrainType, error) {
	if err := auth.Authorize(p, auth.ResourceTrainType, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	t := &models.TrainType{Name: strings.TrimSpace(req.Name)}
	if err := s.DB.CreateTrainType(ctx, t); err != nil {
		return nil, fmt.Errorf("create train type: %w", err)
	}
	return t, nil
}

// ---------------- TRAINS ----------------

func (s *NetworkService) ListTrains(ctx context.Context, p auth.Principal, page utils.Page) ([]models.Train, int, error) {
	if err := auth.Authorize(p, auth.ResourceTrain, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	return s.DB.ListTrains(ctx, page)
}

// GetTrain returns a train and the display names of the trips it runs.
func (s *NetworkService) GetTrain(ctx context.Context, p auth.Principal, id int64) (*models.TrainDetailView, error) {
	if err := auth.Authorize(p, auth.ResourceTrain, auth.ActionRead); err != nil {
		return nil, err
	}
	train, err := s.DB.GetTrain(ctx, id)
	if err != nil {
		return nil, err
	}
	trips, err := s.DB.TripsForTrain(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("trips for train %d: %w", id, err)
	}

	view := &models.TrainDetailView{TrainView: models.NewTrainView(train), Trips: make([]string, 0, len(trips))}
	for i := range trips {
		view.Trips = append(view.Trips, models.TripName(&trips[i]))
	}
	return view, nil
}

func (s *NetworkService) CreateTrain(ctx context.Context, p auth.Principal, req models.TrainRequest) (*models.Train, error) {
	if err := auth.Authorize(p, auth.ResourceTrain, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	train := &models.Train{
		Name:            strings.TrimSpace(req.Name),
		SeatCapacity:    req.SeatCapacity,
		LuggageCapacity: req.LuggageCapacity,
		TrainTypeID:     req.TrainType,
	}
	if err := s.saveTrain(ctx, train, s.DB.CreateTrain); err != nil {
		return nil, err
	}
	return s.DB.GetTrain(ctx, train.ID)
}

func (s *NetworkService) UpdateTrain(ctx context.Context, p auth.Principal, id int64, patch models.TrainPatch, partial bool) (*models.Train, error) {
	if err := auth.Authorize(p, auth.ResourceTrain, auth.ActionWrite); err != nil {
		return nil, err
	}
	train, err := s.DB.GetTrain(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Patch(patch, partial); err != nil {
		return nil, err
	}
	patch.Apply(train)
	train.Name = strings.TrimSpace(train.Name)
	if err := s.saveTrain(ctx, train, s.DB.UpdateTrain); err != nil {
		return nil, err
	}
	return s.DB.GetTrain(ctx, id)
}

// saveTrain checks the train type and stores the train. The store refuses a
// seat capacity below a seat already sold on one of the train's trips.
func (s *NetworkService) saveTrain(ctx context.Context, train *models.Train, save func(context.Context, *models.Train) error) error {
	if err := s.mustExist(ctx, (*models.TrainType)(nil), "train_type", train.TrainTypeID); err != nil {
		return err
	}
	if err := save(ctx, train); err != nil {
		if apperr.IsClientError(err) {
			return err
		}
		if database.IsForeignKeyViolation(err) {
			return apperr.Field("train_type", apperr.ErrNotFound, "invalid pk %d - object does not exist", train.TrainTypeID)
		}
		return fmt.Errorf("save train: %w", err)
	}
	return nil
}

func (s *NetworkService) DeleteTrain(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ResourceTrain, auth.ActionWrite); err != nil {
		return err
	}
	return s.DB.DeleteTrain(ctx, id)
}

// ---------------- STATIONS ----------------

func (s *NetworkService) ListStations(ctx context.Context, p auth.Principal, page utils.Page) ([]models.Station, int, error) {
	if err := auth.Authorize(p, auth.ResourceStation, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	return s.DB.ListStations(ctx, page)
}

func (s *NetworkService) CreateStation(ctx context.Context, p auth.Principal, req models.StationRequest) (*models.Station, error) {
	if err := auth.Authorize(p, auth.ResourceStation, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	station := &models.Station{Name: strings.TrimSpace(req.Name), Latitude: req.Latitude, Longitude: req.Longitude}
	if err := s.DB.CreateStation(ctx, station); err != nil {
		return nil, fmt.Errorf("create station: %w", err)
	}
	return station, nil
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

const maxImageSize = 5 << 20

// UploadStationImage stores an image under the media root and points the
// station at it. The previous image file, if any, is removed.
func (s *NetworkService) UploadStationImage(ctx context.Context, p auth.Principal, id int64, image io.Reader) (*models.Station, error) {
	if err := auth.Authorize(p, auth.ResourceStation, auth.ActionWrite); err != nil {
		return nil, err
	}
	station, err := s.DB.GetStation(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(image, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, apperr.Field("image", apperr.ErrInvalid, "image must be at most %d bytes", maxImageSize)
	}
	ext, ok := allowedImageTypes[http.DetectContentType(data)]
	if !ok {
		return nil, apperr.Field("image", apperr.ErrInvalid, "upload a valid image")
	}

	rel := path.Join("uploads", "stations", fmt.Sprintf("%s-%s%s", slugify(station.Name), uuid.NewString(), ext))
	abs := filepath.Join(s.MediaRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := s.DB.SetStationImage(ctx, id, rel); err != nil {
		_ = os.Remove(abs)
		return nil, fmt.Errorf("set station image: %w", err)
	}

	if station.Image != "" {
		old := filepath.Join(s.MediaRoot, filepath.FromSlash(station.Image))
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			s.Logger.Warn("MEDIA", fmt.Sprintf("Failed to remove old image %s: %v", old, err))
		}
	}
	station.Image = rel
	return station, nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "station"
	}
	return slug
}

// ---------------- ROUTES ----------------

func (s *NetworkService) ListRoutes(ctx context.Context, p auth.Principal, filter models.RouteFilter, page utils.Page) ([]models.Route, int, error) {
	if err := auth.Authorize(p, auth.ResourceRoute, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	return s.DB.ListRoutes(ctx, filter, page)
}

func (s *NetworkService) GetRoute(ctx context.Context, p auth.Principal, id int64) (*models.Route, error) {
	if err := auth.Authorize(p, auth.ResourceRoute, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.DB.GetRoute(ctx, id)
}

func (s *NetworkService) CreateRoute(ctx context.Context, p auth.Principal, req models.RouteRequest) (*models.Route, error) {
	if err := auth.Authorize(p, auth.ResourceRoute, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	route := &models.Route{
		Name:          strings.TrimSpace(req.Name),
		SourceID:      req.Source,
		DestinationID: req.Destination,
		Distance:      req.Distance,
	}
	if err := s.saveRoute(ctx, route, s.DB.CreateRoute); err != nil {
		return nil, err
	}
	return s.DB.GetRoute(ctx, route.ID)
}

func (s *NetworkService) UpdateRoute(ctx context.Context, p auth.Principal, id int64, patch models.RoutePatch, partial bool) (*models.Route, error) {
	if err := auth.Authorize(p, auth.ResourceRoute, auth.ActionWrite); err != nil {
		return nil, err
	}
	route, err := s.DB.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Patch(patch, partial); err != nil {
		return nil, err
	}
	patch.Apply(route)
	route.Name = strings.TrimSpace(route.Name)
	if err := s.saveRoute(ctx, route, s.DB.UpdateRoute); err != nil {
		return nil, err
	}
	return s.DB.GetRoute(ctx, id)
}

func (s *NetworkService) saveRoute(ctx context.Context, route *models.Route, save func(context.Context, *models.Route) error) error {
	if err := validation.ValidateRoute(*route); err != nil {
		return err
	}
	if err := s.checkStations(ctx, route); err != nil {
		return err
	}
	if err := save(ctx, route); err != nil {
		if database.IsForeignKeyViolation(err) {
			// A station was removed after the check above.
			if cerr := s.checkStations(ctx, route); cerr != nil {
				return cerr
			}
		}
		return fmt.Errorf("save route: %w", err)
	}
	return nil
}

func (s *NetworkService) checkStations(ctx context.Context, route *models.Route) error {
	var errs apperr.Errors
	refs := []struct {
		field string
		id    int64
	}{
		{"source", route.SourceID},
		{"destination", route.DestinationID},
	}
	for _, ref := range refs {
		if err := s.mustExist(ctx, (*models.Station)(nil), ref.field, ref.id); err != nil {
			fe, ok := err.(*apperr.FieldError)
			if !ok {
				return err
			}
			errs = append(errs, fe)
		}
	}
	return errs.OrNil()
}

func (s *NetworkService) DeleteRoute(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ResourceRoute, auth.ActionWrite); err != nil {
		return err
	}
	return s.DB.DeleteRoute(ctx, id)
}

// ---------------- CREWS ----------------

func (s *NetworkService) ListCrews(ctx context.Context, p auth.Principal, page utils.Page) ([]models.Crew, int, error) {
	if err := auth.Authorize(p, auth.ResourceCrew, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	return s.DB.ListCrews(ctx, page)
}

func (s *NetworkService) CreateCrew(ctx context.Context, p auth.Principal, req models.CrewRequest) (*models.Crew, error) {
	if err := auth.Authorize(p, auth.ResourceCrew, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	crew := &models.Crew{FirstName: strings.TrimSpace(req.FirstName), LastName: strings.TrimSpace(req.LastName)}
	if err := s.DB.CreateCrew(ctx, crew); err != nil {
		return nil, fmt.Errorf("create crew: %w", err)
	}
	return crew, nil
}
