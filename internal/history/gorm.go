package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
)

type roundRow struct {
	ID         uint        `gorm:"primaryKey"`
	RoomCode   string      `gorm:"size:8;index"`
	Number     int         `gorm:"not null"`
	ServerHand string      `gorm:"size:16"`
	ResolvedAt time.Time   `gorm:"index"`
	Results    []resultRow `gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`
}

func (roundRow) TableName() string { return "rounds" }

type resultRow struct {
	ID       uint   `gorm:"primaryKey"`
	RoundID  uint   `gorm:"index"`
	Position int    `gorm:"not null"`
	MemberID string `gorm:"size:64"`
	Name     string `gorm:"size:128"`
	Hand     string `gorm:"size:16"`
	Outcome  string `gorm:"size:8"`
}

func (resultRow) TableName() string { return "round_results" }

// Postgres stores rounds through gorm.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&roundRow{}, &resultRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Save(ctx context.Context, r Round) error {
	row := roundRow{
		RoomCode:   r.RoomCode,
		Number:     r.Number,
		ServerHand: string(r.ServerHand),
		ResolvedAt: r.ResolvedAt,
	}
	for i, res := range r.Results {
		row.Results = append(row.Results, resultRow{
			Position: i,
			MemberID: res.MemberID,
			Name:     res.Name,
			Hand:     string(res.Hand),
			Outcome:  string(res.Outcome),
		})
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []roundRow
	err := p.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("resolved_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Round, 0, len(rows))
	for _, row := range rows {
		r := Round{
			RoomCode:   row.RoomCode,
			Number:     row.Number,
			ServerHand: engine.Hand(row.ServerHand),
			ResolvedAt: row.ResolvedAt,
		}
		for _, res := range row.Results {
			r.Results = append(r.Results, engine.Result{
				MemberID: res.MemberID,
				Name:     res.Name,
				Hand:     engine.Hand(res.Hand),
				Outcome:  engine.Outcome(res.Outcome),
			})
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
