package store

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/tournament"
)

var ErrNotFound = errors.New("record not found")

// Store persists terminal outcomes only. The live simulation never touches
// the database; a server without DATABASE_URL simply runs without history.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

type MatchRecord struct {
	ID           string `gorm:"primaryKey"`
	LeftPlayer   string
	RightPlayer  string
	TournamentID string `gorm:"index"`
	ScoreLeft    int
	ScoreRight   int
	WinnerID     string
	Outcome      string
	CreatedAt    time.Time
	FinishedAt   time.Time
}

type TournamentRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	WinnerID    string
	CompletedAt time.Time
}

func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&MatchRecord{}, &TournamentRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: log.Named("store")}, nil
}

func (s *Store) SaveMatchResult(v match.View) error {
	rec := MatchRecord{
		ID:           v.ID,
		LeftPlayer:   v.LeftPlayer,
		RightPlayer:  v.RightPlayer,
		TournamentID: v.TournamentID,
		ScoreLeft:    v.ScoreLeft,
		ScoreRight:   v.ScoreRight,
		WinnerID:     v.WinnerID,
		Outcome:      string(v.Outcome),
		CreatedAt:    v.CreatedAt,
		FinishedAt:   time.Now(),
	}
	if err := s.db.Save(&rec).Error; err != nil {
		s.log.Error("failed to persist match result", zap.String("match_id", v.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) GetMatch(id string) (match.View, error) {
	var rec MatchRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return match.View{}, ErrNotFound
		}
		return match.View{}, err
	}
	return match.View{
		ID:           rec.ID,
		LeftPlayer:   rec.LeftPlayer,
		RightPlayer:  rec.RightPlayer,
		TournamentID: rec.TournamentID,
		Status:       match.StatusFinished,
		ScoreLeft:    rec.ScoreLeft,
		ScoreRight:   rec.ScoreRight,
		WinnerID:     rec.WinnerID,
		Outcome:      match.Outcome(rec.Outcome),
		CreatedAt:    rec.CreatedAt,
	}, nil
}

func (s *Store) SaveTournament(v tournament.View) error {
	rec := TournamentRecord{
		ID:          v.ID,
		Name:        v.Name,
		WinnerID:    v.WinnerID,
		CompletedAt: time.Now(),
	}
	if err := s.db.Save(&rec).Error; err != nil {
		s.log.Error("failed to persist tournament", zap.String("tournament_id", v.ID), zap.Error(err))
		return err
	}
	return nil
}
