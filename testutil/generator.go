package testutil

import (
	"testing"
	"time"

	"firecontest-backend/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user and admin.
const DefaultPassword = "hunter22"

// DataGenerator creates persisted fixtures with fake but plausible values.
type DataGenerator struct {
	faker *gofakeit.Faker
	db    *gorm.DB
}

func NewDataGenerator(db *gorm.DB, seed ...int64) *DataGenerator {
	s := time.Now().UnixNano()
	if len(seed) > 0 {
		s = seed[0]
	}
	return &DataGenerator{faker: gofakeit.New(uint64(s)), db: db}
}

func passwordHash(t testing.TB) string {
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func (g *DataGenerator) User(t testing.TB) *models.User {
	t.Helper()
	suffix := g.faker.Numerify("####")
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     g.faker.Username() + suffix,
		Email:        suffix + g.faker.Email(),
		PasswordHash: passwordHash(t),
	}
	require.NoError(t, g.db.Create(user).Error)
	return user
}

func (g *DataGenerator) Admin(t testing.TB) *models.Admin {
	t.Helper()
	admin := &models.Admin{
		ID:           uuid.NewString(),
		Email:        g.faker.Numerify("admin####@") + g.faker.DomainName(),
		PasswordHash: passwordHash(t),
	}
	require.NoError(t, g.db.Create(admin).Error)
	return admin
}

// ContestSpec overrides generated contest fields. Zero values keep defaults.
type ContestSpec struct {
	EntryFee   float64
	MaxPlayers int
	Status     models.ContestStatus
}

func (g *DataGenerator) Contest(t testing.TB, spec ContestSpec) *models.Contest {
	t.Helper()
	if spec.MaxPlayers == 0 {
		spec.MaxPlayers = 48
	}
	if spec.Status == "" {
		spec.Status = models.ContestUpcoming
	}
	title := g.faker.Company() + " Showdown"
	contest := &models.Contest{
		ID:         uuid.NewString(),
		Slug:       slug.Make(title) + "-" + g.faker.LetterN(6),
		Title:      title,
		EntryFee:   spec.EntryFee,
		MaxPlayers: spec.MaxPlayers,
		MatchTime:  time.Now().UTC().Add(24 * time.Hour),
		Status:     spec.Status,
		Rewards:    models.Rewards{First: "₹500", Second: "₹250", Third: "₹100"},
	}
	require.NoError(t, g.db.Create(contest).Error)
	return contest
}

func (g *DataGenerator) Payment(t testing.TB, user *models.User, contest *models.Contest, status models.PaymentStatus) *models.Payment {
	t.Helper()
	utr := g.faker.Numerify("UTR############")
	payment := &models.Payment{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		ContestID:  contest.ID,
		FullName:   g.faker.Name(),
		FFID:       g.faker.Numerify("FF#########"),
		UTR:        &utr,
		Screenshot: "https://cdn.test/payments/" + uuid.NewString() + ".png",
		Amount:     contest.EntryFee,
		Method:     models.PaymentManual,
		Status:     status,
	}
	require.NoError(t, g.db.Create(payment).Error)
	return payment
}
