package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/events"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

// ErrLeaderboardForbidden indicates the actor may not view the group ranking.
var ErrLeaderboardForbidden = errors.New("group leaderboard is not visible to this user")

const leaderboardKeyPrefix = "leaderboard:group:"

// LeaderboardService ranks students by their effective grade totals.
type LeaderboardService interface {
	Group(ctx context.Context, actor ActivityActor, groupID uint) (dto.GroupLeaderboardResponse, error)
	StudentGrades(ctx context.Context, actor ActivityActor, filter dto.StudentGradesFilter) (dto.StudentGradesResponse, error)
	HandleGradeEvent(ctx context.Context, event events.GradeEvent)
}

type leaderboardService struct {
	grades    repository.GradeRepository
	users     repository.UserRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewLeaderboardService constructs the leaderboard service. cache may be nil.
func NewLeaderboardService(grades repository.GradeRepository, users repository.UserRepository, validate *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		grades:    grades,
		users:     users,
		validator: validate,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "leaderboard_service").Logger(),
		now:       time.Now,
	}
}

func (s *leaderboardService) Group(ctx context.Context, actor ActivityActor, groupID uint) (dto.GroupLeaderboardResponse, error) {
	if err := s.ensureGroupVisible(ctx, actor, groupID); err != nil {
		return dto.GroupLeaderboardResponse{}, err
	}

	cacheKey := fmt.Sprintf("%s%d", leaderboardKeyPrefix, groupID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.GroupLeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("group_id", groupID).Msg("leaderboard cache hit")
				response.Cached = true
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	records, err := s.grades.ListRecords(ctx, repository.GradeRecordFilter{GroupID: &groupID})
	if err != nil {
		return dto.GroupLeaderboardResponse{}, err
	}

	response := dto.GroupLeaderboardResponse{
		GroupID:     groupID,
		Entries:     RankStudents(records),
		GeneratedAt: s.now().UTC(),
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return response, nil
}

func (s *leaderboardService) StudentGrades(ctx context.Context, actor ActivityActor, filter dto.StudentGradesFilter) (dto.StudentGradesResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.StudentGradesResponse{}, err
	}

	from, to, err := StudentWindow(filter, s.now())
	if err != nil {
		return dto.StudentGradesResponse{}, err
	}

	records, err := s.grades.ListRecords(ctx, repository.GradeRecordFilter{StudentID: &actor.ID, From: from, To: to})
	if err != nil {
		return dto.StudentGradesResponse{}, err
	}

	total := decimal.Zero
	items := make([]dto.GradeRecordResponse, 0, len(records))
	for _, record := range records {
		if effective := record.Grade.EffectiveTotal(); effective.Valid {
			total = total.Add(effective.Decimal)
		}
		items = append(items, newGradeRecordResponse(record))
	}

	return dto.StudentGradesResponse{
		Items: items,
		Total: total.StringFixed(models.ScorePlaces),
		From:  from,
		To:    to,
	}, nil
}

// HandleGradeEvent drops cached rankings touched by a grade change. Events
// without a group clear every cached group.
func (s *leaderboardService) HandleGradeEvent(ctx context.Context, event events.GradeEvent) {
	if s.cache == nil {
		return
	}

	if event.GroupID > 0 {
		if err := s.cache.Del(ctx, fmt.Sprintf("%s%d", leaderboardKeyPrefix, event.GroupID)).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("group_id", event.GroupID).Msg("failed to invalidate leaderboard cache")
		}
		return
	}

	iter := s.cache.Scan(ctx, 0, leaderboardKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", iter.Val()).Msg("failed to invalidate leaderboard cache")
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan leaderboard cache")
	}
}

// RankStudents sums effective totals per student and ranks them descending.
// Students with equal totals share a rank.
func RankStudents(records []repository.GradeRecord) []dto.LeaderboardEntry {
	type tally struct {
		id     uint
		name   string
		total  decimal.Decimal
		graded int
	}

	byStudent := map[uint]*tally{}
	order := make([]*tally, 0)
	for _, record := range records {
		current, ok := byStudent[record.StudentID]
		if !ok {
			current = &tally{id: record.StudentID, name: record.StudentName, total: decimal.Zero}
			byStudent[record.StudentID] = current
			order = append(order, current)
		}
		if effective := record.Grade.EffectiveTotal(); effective.Valid {
			current.total = current.total.Add(effective.Decimal)
			current.graded++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if cmp := order[i].total.Cmp(order[j].total); cmp != 0 {
			return cmp > 0
		}
		if order[i].name != order[j].name {
			return order[i].name < order[j].name
		}
		return order[i].id < order[j].id
	})

	entries := make([]dto.LeaderboardEntry, 0, len(order))
	for i, item := range order {
		rank := i + 1
		if i > 0 && item.total.Equal(order[i-1].total) {
			rank = entries[i-1].Rank
		}
		entry := dto.LeaderboardEntry{
			Rank:        rank,
			StudentID:   item.id,
			StudentName: item.name,
			Total:       item.total.StringFixed(models.ScorePlaces),
			Graded:      item.graded,
		}
		if item.graded > 0 {
			average := item.total.Div(decimal.NewFromInt(int64(item.graded))).StringFixed(models.ScorePlaces)
			entry.Average = &average
		}
		entries = append(entries, entry)
	}
	return entries
}

// StudentWindow resolves the calendar window of a student grade filter. Day
// takes precedence over month, month over last_month; no filter means no window.
func StudentWindow(filter dto.StudentGradesFilter, reference time.Time) (*time.Time, *time.Time, error) {
	var from, to time.Time
	switch {
	case filter.Day != "":
		day, err := time.ParseInLocation(dto.DateLayout, filter.Day, reference.Location())
		if err != nil {
			return nil, nil, fmt.Errorf("invalid day: %w", err)
		}
		from, to = day, day.AddDate(0, 0, 1)
	case filter.Month != "":
		month, err := time.ParseInLocation("2006-01", filter.Month, reference.Location())
		if err != nil {
			return nil, nil, fmt.Errorf("invalid month: %w", err)
		}
		from, to = month, month.AddDate(0, 1, 0)
	case filter.LastMonth:
		current := time.Date(reference.Year(), reference.Month(), 1, 0, 0, 0, 0, reference.Location())
		from, to = current.AddDate(0, -1, 0), current
	default:
		return nil, nil, nil
	}
	return &from, &to, nil
}

func (s *leaderboardService) ensureGroupVisible(ctx context.Context, actor ActivityActor, groupID uint) error {
	group, err := s.users.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if group.TeacherID != nil && *group.TeacherID == actor.ID {
			return nil
		}
	default:
		user, err := s.users.GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if user.GroupID != nil && *user.GroupID == group.ID {
			return nil
		}
	}
	return ErrLeaderboardForbidden
}
