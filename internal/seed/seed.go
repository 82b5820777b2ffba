// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"ripple/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder populates the database with generated users, posts, comments and
// likes. All generated users share the password "password123".
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded data. Hard deletes, since seeding starts from
// a clean slate.
func (s *Seeder) ClearAll() error {
	for _, model := range []any{&models.Like{}, &models.Comment{}, &models.Post{}, &models.User{}} {
		if err := s.db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// SeedUsers creates count users with fake identities.
func (s *Seeder) SeedUsers(count int) ([]*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		name := gofakeit.Name()
		username := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
		users = append(users, &models.User{
			FullName:   name,
			Username:   username,
			Email:      strings.ToLower(gofakeit.Email()),
			Password:   string(hashed),
			ProfilePic: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		})
	}
	if err := s.db.Create(&users).Error; err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	log.Printf("seeded %d users", len(users))
	return users, nil
}

// SeedPosts creates count posts spread over the last maxDays days, then
// sprinkles likes and comments across them.
func (s *Seeder) SeedPosts(users []*models.User, count, maxDays int) error {
	if len(users) == 0 {
		return fmt.Errorf("no users to attribute posts to")
	}
	if maxDays <= 0 {
		maxDays = 30
	}

	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		owner := users[s.rng.Intn(len(users))]
		post := &models.Post{
			Content: gofakeit.Paragraph(1, 3, 8, "\n"),
			UserID:  owner.ID,
		}
		if s.rng.Intn(3) == 0 {
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}
		post.CreatedAt = time.Now().
			Add(-time.Duration(s.rng.Intn(maxDays*24)) * time.Hour).
			Add(-time.Duration(s.rng.Intn(60)) * time.Minute)
		posts = append(posts, post)
	}
	if err := s.db.Create(&posts).Error; err != nil {
		return fmt.Errorf("create posts: %w", err)
	}

	var likes []*models.Like
	var comments []*models.Comment
	for _, post := range posts {
		for _, u := range users {
			if s.rng.Intn(4) == 0 {
				likes = append(likes, &models.Like{UserID: u.ID, PostID: post.ID})
			}
		}
		for i := 0; i < s.rng.Intn(4); i++ {
			author := users[s.rng.Intn(len(users))]
			comments = append(comments, &models.Comment{
				Content: gofakeit.Sentence(s.rng.Intn(10) + 3),
				UserID:  author.ID,
				PostID:  post.ID,
			})
		}
	}
	if len(likes) > 0 {
		if err := s.db.Create(&likes).Error; err != nil {
			return fmt.Errorf("create likes: %w", err)
		}
	}
	if len(comments) > 0 {
		if err := s.db.Create(&comments).Error; err != nil {
			return fmt.Errorf("create comments: %w", err)
		}
	}

	log.Printf("seeded %d posts, %d likes, %d comments", len(posts), len(likes), len(comments))
	return nil
}
