// Package geofence stores the family's named places and children's
// reported locations, and describes a location relative to those places.
package geofence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
	"github.com/dukerupert/questtracker/internal/websocket"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotChild        = errors.New("user is not a child")
	ErrInvalidGeofence = errors.New("invalid geofence")
	ErrInvalidLocation = errors.New("invalid location")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	unknownStatus       = "Location unknown"
)

type Notifier interface {
	Notify(ctx context.Context, userID int64, n model.Notification)
}

type Broadcaster interface {
	Broadcast(familyID int64, msg websocket.Message)
}

type Service struct {
	fences   *store.GeofenceStore
	users    *store.UserStore
	hub      Broadcaster
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, hub Broadcaster, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fences:   store.NewGeofenceStore(db),
		users:    store.NewUserStore(db),
		hub:      hub,
		notifier: notifier,
		logger:   logger.With("component", "geofence"),
		now:      time.Now,
	}
}

func validCoords(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func validate(g *model.Geofence) error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGeofence)
	}
	if !validCoords(g.Latitude, g.Longitude) {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidGeofence)
	}
	if g.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidGeofence)
	}
	return nil
}

func (s *Service) broadcast(familyID int64, msg websocket.Message) {
	if s.hub != nil {
		s.hub.Broadcast(familyID, msg)
	}
}

func (s *Service) CreateGeofence(ctx context.Context, familyID int64, g model.Geofence) (*model.Geofence, error) {
	if err := validate(&g); err != nil {
		return nil, err
	}
	created, err := s.fences.Create(familyID, g.Name, g.Latitude, g.Longitude, g.Radius)
	if err != nil {
		return nil, err
	}
	s.broadcast(familyID, websocket.NewMessage("geofence", "created", created.ID, nil))
	return created, nil
}

func (s *Service) familyFence(familyID, id int64) (*model.Geofence, error) {
	g, err := s.fences.GetByID(id)
	if err != nil {
		return nil, err
	}
	if g == nil || g.FamilyID != familyID {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *Service) UpdateGeofence(ctx context.Context, familyID int64, g model.Geofence) (*model.Geofence, error) {
	if _, err := s.familyFence(familyID, g.ID); err != nil {
		return nil, err
	}
	if err := validate(&g); err != nil {
		return nil, err
	}
	updated, err := s.fences.Update(g.ID, g.Name, g.Latitude, g.Longitude, g.Radius)
	if err != nil {
		return nil, err
	}
	s.broadcast(familyID, websocket.NewMessage("geofence", "updated", g.ID, nil))
	return updated, nil
}

func (s *Service) DeleteGeofence(ctx context.Context, familyID, id int64) error {
	if _, err := s.familyFence(familyID, id); err != nil {
		return err
	}
	if err := s.fences.Delete(id); err != nil {
		return err
	}
	s.broadcast(familyID, websocket.NewMessage("geofence", "deleted", id, nil))
	return nil
}

func (s *Service) Geofences(ctx context.Context, familyID int64) ([]model.Geofence, error) {
	fences, err := s.fences.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	if fences == nil {
		fences = []model.Geofence{}
	}
	return fences, nil
}

// ChildLocation is a child's last reported fix with its place description.
type ChildLocation struct {
	ChildID  int64           `json:"child_id"`
	Name     string          `json:"name"`
	Location *model.Location `json:"location"`
	Status   string          `json:"status"`
}

func (s *Service) familyChild(familyID, childID int64) (*model.User, error) {
	c, err := s.users.GetByID(childID)
	if err != nil {
		return nil, err
	}
	if c == nil || c.FamilyID != familyID {
		return nil, ErrNotFound
	}
	if !c.IsChild() {
		return nil, ErrNotChild
	}
	return c, nil
}

// ReportLocation records the child's position and pushes it to the rest of
// the family.
func (s *Service) ReportLocation(ctx context.Context, familyID, childID int64, lat, lng, accuracy float64) (*ChildLocation, error) {
	c, err := s.familyChild(familyID, childID)
	if err != nil {
		return nil, err
	}
	if !validCoords(lat, lng) {
		return nil, ErrInvalidLocation
	}
	loc := model.Location{ChildID: childID, Latitude: lat, Longitude: lng, Accuracy: accuracy, RecordedAt: s.now()}
	if err := s.fences.RecordLocation(loc); err != nil {
		return nil, err
	}
	fences, err := s.fences.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	status := NearestStatus(lat, lng, fences)
	s.broadcast(familyID, websocket.NewMessage("location", "updated", childID, map[string]any{
		"latitude":  lat,
		"longitude": lng,
		"status":    status,
	}))
	return &ChildLocation{ChildID: childID, Name: c.Name, Location: &loc, Status: status}, nil
}

// RequestLocation asks the child's device to report a fresh location.
func (s *Service) RequestLocation(ctx context.Context, familyID, childID int64) error {
	c, err := s.familyChild(familyID, childID)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, c.ID, model.Notification{
			Title:    "Location Request",
			Message:  "Your parent would like to know where you are",
			Category: model.CategoryLocationRequest,
			Data:     model.NotificationData{Action: "location_request"},
		})
	}
	return nil
}

func (s *Service) describe(c model.User, fences []model.Geofence) (ChildLocation, error) {
	loc, err := s.fences.GetLocation(c.ID)
	if err != nil {
		return ChildLocation{}, err
	}
	cl := ChildLocation{ChildID: c.ID, Name: c.Name, Location: loc, Status: unknownStatus}
	if loc != nil {
		cl.Status = NearestStatus(loc.Latitude, loc.Longitude, fences)
	}
	return cl, nil
}

func (s *Service) ChildLocation(ctx context.Context, familyID, childID int64) (*ChildLocation, error) {
	c, err := s.familyChild(familyID, childID)
	if err != nil {
		return nil, err
	}
	fences, err := s.fences.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	cl, err := s.describe(*c, fences)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// FamilyLocations describes the last known location of every child.
func (s *Service) FamilyLocations(ctx context.Context, familyID int64) ([]ChildLocation, error) {
	children, err := s.users.ListChildren(familyID)
	if err != nil {
		return nil, err
	}
	fences, err := s.fences.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	out := make([]ChildLocation, 0, len(children))
	for _, c := range children {
		cl, err := s.describe(c, fences)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, nil
}

// HistoryEntry is one past fix with its place description.
type HistoryEntry struct {
	model.Location
	Status string `json:"status"`
}

func (s *Service) History(ctx context.Context, familyID, childID int64, limit int) ([]HistoryEntry, error) {
	if _, err := s.familyChild(familyID, childID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	locs, err := s.fences.ListHistory(childID, limit)
	if err != nil {
		return nil, err
	}
	fences, err := s.fences.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(locs))
	for _, l := range locs {
		out = append(out, HistoryEntry{Location: l, Status: NearestStatus(l.Latitude, l.Longitude, fences)})
	}
	return out, nil
}

// PruneHistory drops location history older than retain.
func (s *Service) PruneHistory(ctx context.Context, retain time.Duration) (int64, error) {
	n, err := s.fences.PruneHistory(s.now().Add(-retain))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned location history", "rows", n)
	}
	return n, nil
}
