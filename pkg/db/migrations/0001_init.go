package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"type:text;not null"`
	Public      bool      `gorm:"column:is_public;not null;default:false"`
	OrganizerID uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Membership struct {
	EventID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	State     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Event     Event     `gorm:"foreignKey:EventID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type JoinRequest struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_join_requests_event_requester"`
	RequesterID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_join_requests_event_requester"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Event       Event     `gorm:"foreignKey:EventID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Invitation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	InviterID  uuid.UUID  `gorm:"type:uuid;not null"`
	InviteeID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status     string     `gorm:"type:text;not null;default:'pending'"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
	Event      Event      `gorm:"foreignKey:EventID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Notification struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Type        string            `gorm:"type:text;not null"`
	Content     string            `gorm:"type:text;not null"`
	EventID     *uuid.UUID        `gorm:"type:uuid"`
	Read        bool              `gorm:"not null;default:false"`
	Meta        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Event{},
		&Membership{},
		&JoinRequest{},
		&Invitation{},
		&Notification{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&Membership{}, "Event"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&JoinRequest{}, "Event"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Invitation{}, "Event"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&Notification{},
		&Invitation{},
		&JoinRequest{},
		&Membership{},
		&Event{},
	); err != nil {
		return err
	}

	return nil
}
