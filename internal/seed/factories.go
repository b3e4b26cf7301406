package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"fixmystuff/internal/auth"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/solution"
	"fixmystuff/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

var (
	brokenItems = []string{
		"kitchen faucet", "washing machine", "laptop computer", "smartphone", "office chair",
		"dishwasher", "ceiling fan", "coffee maker", "garage door opener", "bathroom faucet",
		"gaming console", "refrigerator", "desk lamp", "bookshelf", "wifi router",
	}

	symptoms = []string{
		"is leaking from the base",
		"stopped working after a power cut",
		"makes a grinding noise when it starts",
		"shows an error code on the display",
		"has a broken hinge",
		"will not turn on anymore",
		"keeps overheating after a few minutes",
		"has a problem with the power button",
	}
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db        *gorm.DB
	opts      Options
	faker     *gofakeit.Faker
	rng       *rand.Rand
	solutions solution.Generator

	// seed is the resolved random seed, never zero.
	seed         int64
	passwordHash string
	seq          int
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.RandomSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// #nosec G404: acceptable for seeding
	rng := rand.New(rand.NewSource(seed))
	return &Factory{
		db:        db,
		opts:      opts,
		faker:     gofakeit.New(seed),
		rng:       rng,
		solutions: solution.NewDetailed(rand.New(rand.NewSource(seed + 1))), // #nosec G404
		seed:      seed,
		nextID:    1000,
	}
}

func (f *Factory) password() (string, error) {
	if f.passwordHash == "" {
		hash, err := auth.HashPassword(DefaultPassword)
		if err != nil {
			return "", err
		}
		f.passwordHash = hash
	}
	return f.passwordHash, nil
}

// uniqueUsername derives a valid username from a fake handle plus a
// sequence suffix.
func (f *Factory) uniqueUsername() string {
	f.seq++
	suffix := fmt.Sprintf("%d", f.seq)
	stem := validation.NormalizeUsername(strings.ToLower(f.faker.Username()))
	if len(stem)+len(suffix) > validation.UsernameMaxLength {
		stem = stem[:validation.UsernameMaxLength-len(suffix)]
	}
	return stem + suffix
}

// createdAt spreads timestamps over the last opts.MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// CreateUser constructs and persists a sample user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.password()
	if err != nil {
		return nil, err
	}
	username := f.uniqueUsername()
	user := &models.User{
		Username:  username,
		Email:     strings.ToLower(username) + "@example.com",
		Password:  hash,
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		DarkMode:  f.faker.Bool(),
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		middleware.Logger.Debug("dry-run create user", "username", user.Username)
		return user, nil
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Description returns a plausible fix request description.
func (f *Factory) Description() string {
	return fmt.Sprintf("My %s %s. %s",
		f.faker.RandomString(brokenItems),
		f.faker.RandomString(symptoms),
		f.faker.Sentence(8))
}

// BuildFixRequest constructs a completed fix request with a generated
// solution but does not persist it. Useful for batching.
func (f *Factory) BuildFixRequest(ctx context.Context, user *models.User, overrides ...func(*models.FixRequest)) (*models.FixRequest, error) {
	description := f.Description()
	imageURL := fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())

	text, err := f.solutions.Generate(ctx, solution.Request{Description: description, ImageURL: imageURL})
	if err != nil {
		return nil, err
	}

	created := f.createdAt()
	fix := &models.FixRequest{
		UserID:           user.ID,
		Title:            models.FixRequestTitle(description),
		Description:      description,
		ImageURL:         imageURL,
		AISolution:       text,
		Status:           models.FixStatusCompleted,
		SolutionProvider: f.solutions.Name(),
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	for _, override := range overrides {
		override(fix)
	}
	return fix, nil
}

// CreateFixRequestsBatch persists multiple fix requests in batches.
func (f *Factory) CreateFixRequestsBatch(ctx context.Context, fixes []*models.FixRequest) error {
	if len(fixes) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, fix := range fixes {
			f.nextID++
			fix.ID = f.nextID
		}
		middleware.Logger.Debug("dry-run create fix requests", "count", len(fixes))
		return nil
	}
	batch := f.opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return f.db.WithContext(ctx).CreateInBatches(fixes, batch).Error
}
