package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/models"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection     = "users"
	locationsCollection = "locations"
)

// FirestoreRepository stores profiles in the users collection and their
// location projection in the locations collection, keyed by the same ID
type FirestoreRepository struct {
	client *firestore.Client
}

// ConnectFirestore initializes a Firebase app and returns its Firestore client.
// An empty credentials file falls back to application default credentials.
func ConnectFirestore(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// NewFirestoreRepository creates a new Firestore repository
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

type userDoc struct {
	Name       string    `firestore:"name"`
	Email      string    `firestore:"email"`
	WhatsApp   string    `firestore:"whatsapp"`
	StudyTimes []string  `firestore:"studyTimes"`
	CEP        string    `firestore:"cep"`
	Level      string    `firestore:"level"`
	About      string    `firestore:"about"`
	AvatarURL  string    `firestore:"avatarUrl"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

type locationDoc struct {
	UserID     string         `firestore:"userId"`
	Location   *latlng.LatLng `firestore:"location"`
	Level      string         `firestore:"level"`
	StudyTimes []string       `firestore:"studyTimes"`
}

func toUserDoc(p *models.Profile) userDoc {
	return userDoc{
		Name:       p.Name,
		Email:      p.Email,
		WhatsApp:   p.WhatsApp,
		StudyTimes: p.StudyTimes,
		CEP:        p.CEP,
		Level:      p.Level,
		About:      p.About,
		AvatarURL:  p.AvatarURL,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (d userDoc) profile(id string) *models.Profile {
	return &models.Profile{
		ID:         id,
		Name:       d.Name,
		Email:      d.Email,
		WhatsApp:   d.WhatsApp,
		StudyTimes: d.StudyTimes,
		CEP:        d.CEP,
		Level:      d.Level,
		About:      d.About,
		AvatarURL:  d.AvatarURL,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func toLocationDoc(loc *models.LocationRecord) locationDoc {
	return locationDoc{
		UserID:     loc.UserID,
		Location:   toLatLng(loc.Coordinate),
		Level:      loc.Level,
		StudyTimes: loc.StudyTimes,
	}
}

func (d locationDoc) record(id string) *models.LocationRecord {
	rec := &models.LocationRecord{
		UserID:     d.UserID,
		Level:      d.Level,
		StudyTimes: d.StudyTimes,
	}
	if rec.UserID == "" {
		rec.UserID = id
	}
	if d.Location != nil {
		rec.Coordinate = geo.Coordinate{Latitude: d.Location.Latitude, Longitude: d.Location.Longitude}
	}
	return rec
}

func toLatLng(c geo.Coordinate) *latlng.LatLng {
	return &latlng.LatLng{Latitude: c.Latitude, Longitude: c.Longitude}
}

// filterQuery applies level equality and study time any-of filters to q
func filterQuery(q firestore.Query, f models.SearchFilters) firestore.Query {
	if f.Level != "" {
		q = q.Where("level", "==", f.Level)
	}
	if len(f.StudyTimes) > 0 {
		q = q.Where("studyTimes", "array-contains-any", f.StudyTimes)
	}
	return q
}

// CreateProfile writes the user and location documents in one transaction
func (r *FirestoreRepository) CreateProfile(ctx context.Context, p *models.Profile, coord geo.Coordinate) error {
	users := r.client.Collection(usersCollection)
	userRef := users.Doc(p.ID)
	locRef := r.client.Collection(locationsCollection).Doc(p.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(users.Where("email", "==", p.Email).Limit(1)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if len(existing) > 0 {
			return models.ErrEmailTaken
		}
		if err := tx.Create(userRef, toUserDoc(p)); err != nil {
			return err
		}
		return tx.Set(locRef, toLocationDoc(models.LocationFor(p, coord)))
	})
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return err
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateProfile rewrites the user document and merges level, study times and,
// when coord is non-nil, the coordinate into the location document
func (r *FirestoreRepository) UpdateProfile(ctx context.Context, p *models.Profile, coord *geo.Coordinate) error {
	userRef := r.client.Collection(usersCollection).Doc(p.ID)
	locRef := r.client.Collection(locationsCollection).Doc(p.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(userRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return models.ErrNotFound
			}
			return err
		}
		if err := tx.Set(userRef, toUserDoc(p)); err != nil {
			return err
		}

		fields := map[string]interface{}{
			"userId":     p.ID,
			"level":      p.Level,
			"studyTimes": p.StudyTimes,
		}
		if coord != nil {
			fields["location"] = toLatLng(*coord)
		}
		return tx.Set(locRef, fields, firestore.MergeAll)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by document ID
func (r *FirestoreRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	snap, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return doc.profile(snap.Ref.ID), nil
}

// GetProfileByEmail retrieves a profile by email
func (r *FirestoreRepository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	q := r.client.Collection(usersCollection).Where("email", "==", email).Limit(1)
	return r.first(ctx, q)
}

// GetProfileByCredentials retrieves the profile matching both email and WhatsApp number
func (r *FirestoreRepository) GetProfileByCredentials(ctx context.Context, email, whatsapp string) (*models.Profile, error) {
	q := r.client.Collection(usersCollection).
		Where("email", "==", email).
		Where("whatsapp", "==", whatsapp).
		Limit(1)
	return r.first(ctx, q)
}

// FindProfiles returns profiles matching the level and study time filters
func (r *FirestoreRepository) FindProfiles(ctx context.Context, f models.SearchFilters) ([]*models.Profile, error) {
	q := filterQuery(r.client.Collection(usersCollection).Query, f)
	profiles, err := r.collectProfiles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	return profiles, nil
}

// GetProfilesByIDs returns the profiles with the given document IDs.
// Callers keep batches within the store's membership query limit.
func (r *FirestoreRepository) GetProfilesByIDs(ctx context.Context, ids []string) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	users := r.client.Collection(usersCollection)
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = users.Doc(id)
	}

	profiles, err := r.collectProfiles(ctx, users.Where(firestore.DocumentID, "in", refs))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles by id: %w", err)
	}
	return profiles, nil
}

// FindLocations returns location records matching the level and study time filters
func (r *FirestoreRepository) FindLocations(ctx context.Context, f models.SearchFilters) ([]*models.LocationRecord, error) {
	iter := filterQuery(r.client.Collection(locationsCollection).Query, f).Documents(ctx)
	defer iter.Stop()

	var locations []*models.LocationRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query locations: %w", err)
		}

		var doc locationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode location %s: %w", snap.Ref.ID, err)
		}
		locations = append(locations, doc.record(snap.Ref.ID))
	}
	return locations, nil
}

func (r *FirestoreRepository) first(ctx context.Context, q firestore.Query) (*models.Profile, error) {
	profiles, err := r.collectProfiles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(profiles) == 0 {
		return nil, models.ErrNotFound
	}
	return profiles[0], nil
}

func (r *FirestoreRepository) collectProfiles(ctx context.Context, q firestore.Query) ([]*models.Profile, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var profiles []*models.Profile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", snap.Ref.ID, err)
		}
		profiles = append(profiles, doc.profile(snap.Ref.ID))
	}
	return profiles, nil
}
