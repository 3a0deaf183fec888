package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zns-gateway/internal/bom"
	"zns-gateway/internal/formatter"
	"zns-gateway/internal/models"
	"zns-gateway/internal/settings"
)

// StatusListener is told about every persisted History change.
type StatusListener interface {
	HistoryChanged(ctx context.Context, h *models.History)
}

type Service struct {
	db        *gorm.DB
	bom       *bom.Client
	settings  *settings.Store
	log       *logrus.Logger
	listeners []StatusListener
	now       func() time.Time
}

func New(db *gorm.DB, client *bom.Client, store *settings.Store, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		db:       db,
		bom:      client,
		settings: store,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) AddListener(l StatusListener) {
	s.listeners = append(s.listeners, l)
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) DB() *gorm.DB {
	return s.db
}

func (s *Service) Settings() *settings.Store {
	return s.settings
}

// Formatter returns a formatter honouring the company's custom-expression toggle.
func (s *Service) Formatter(ctx context.Context, companyID uint) *formatter.Formatter {
	return formatter.New(s.settings.Bool(ctx, companyID, settings.SafeEval), s.log)
}

func (s *Service) saveHistory(ctx context.Context, h *models.History) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(h).Error; err != nil {
		s.log.WithError(err).WithField("history_id", h.ID).Error("failed to save history")
		return err
	}
	for _, l := range s.listeners {
		l.HistoryChanged(ctx, h)
	}
	return nil
}

// recordFailure saves h and returns msg, extended with the save error when
// the row could not be written.
func (s *Service) recordFailure(ctx context.Context, h *models.History, msg string) string {
	if err := s.saveHistory(ctx, h); err != nil {
		return fmt.Sprintf("%s (failed to save history: %v)", msg, err)
	}
	return msg
}

// createWithZeroes inserts row and then writes the given columns explicitly,
// since gorm replaces Go zero values with the column defaults on insert.
func createWithZeroes(tx *gorm.DB, row any, zeroable map[string]any) error {
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	if len(zeroable) == 0 {
		return nil
	}
	return tx.Model(row).Updates(zeroable).Error
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(b)
}

func stringValue(v any, fallback string) string {
	switch x := v.(type) {
	case nil:
		return fallback
	case string:
		if x == "" {
			return fallback
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}

func uintPtr(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
