package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	coursedomain "github.com/smallbiznis/entitlement/internal/course/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DevCustomerRef = "cus_dev_demo"
	devAuthID      = "auth_dev_demo"
	devEmail       = "demo@masterclass.local"
	devName        = "Demo Learner"
)

// DevCourses is the catalog loaded into development databases.
var DevCourses = []coursedomain.Course{
	{ID: "course_go_fundamentals", Title: "Go Fundamentals", Price: 4900, ImageURL: "https://images.masterclass.local/go-fundamentals.png"},
	{ID: "course_distributed_systems", Title: "Distributed Systems in Practice", Price: 9900, ImageURL: "https://images.masterclass.local/distributed-systems.png"},
	{ID: "course_postgres_internals", Title: "Postgres Internals", Price: 7900, ImageURL: "https://images.masterclass.local/postgres-internals.png"},
}

// EnsureDevFixtures seeds the course catalog and a demo user whose billing
// customer ref matches Stripe CLI fixtures. Existing rows are left untouched.
func EnsureDevFixtures(db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().UTC()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courses := make([]coursedomain.Course, len(DevCourses))
		copy(courses, DevCourses)
		for i := range courses {
			courses[i].CreatedAt = now
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&courses).Error; err != nil {
			return err
		}

		user := userdomain.User{
			ID:                 node.Generate(),
			ExternalAuthID:     devAuthID,
			ExternalCustomerID: DevCustomerRef,
			Email:              devEmail,
			Name:               devName,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error
	})
	if err != nil {
		return err
	}

	log.Info("development fixtures ensured",
		zap.Int("courses", len(DevCourses)),
		zap.String("customer_ref", DevCustomerRef),
	)
	return nil
}
