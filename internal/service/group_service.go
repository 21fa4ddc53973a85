package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

// ErrGroupForbidden is returned when the actor does not teach the requested group.
var ErrGroupForbidden = errors.New("group is not taught by this user")

// GroupService lists the study groups visible to a user and their members.
type GroupService interface {
	Mine(ctx context.Context, actor ActivityActor) ([]dto.GroupResponse, error)
	Members(ctx context.Context, actor ActivityActor, groupID uint) ([]dto.UserResponse, error)
}

type groupService struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewGroupService constructs the group service.
func NewGroupService(users repository.UserRepository, logger zerolog.Logger) GroupService {
	return &groupService{
		users:  users,
		logger: logger.With().Str("component", "group_service").Logger(),
	}
}

func (s *groupService) Mine(ctx context.Context, actor ActivityActor) ([]dto.GroupResponse, error) {
	if actor.Role != models.RoleStudent {
		groups, err := s.users.ListGroupsByTeacher(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		response := make([]dto.GroupResponse, 0, len(groups))
		for _, group := range groups {
			response = append(response, dto.NewGroupResponse(group))
		}
		return response, nil
	}

	student, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if student.GroupID == nil {
		return []dto.GroupResponse{}, nil
	}
	group, err := s.users.GetGroup(ctx, *student.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []dto.GroupResponse{}, nil
		}
		return nil, err
	}
	return []dto.GroupResponse{dto.NewGroupResponse(group)}, nil
}

func (s *groupService) Members(ctx context.Context, actor ActivityActor, groupID uint) ([]dto.UserResponse, error) {
	group, err := s.users.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if actor.Role != models.RoleAdmin && (group.TeacherID == nil || *group.TeacherID != actor.ID) {
		return nil, ErrGroupForbidden
	}

	students, err := s.users.List(ctx, repository.UserFilter{Role: models.RoleStudent, GroupID: &group.ID})
	if err != nil {
		return nil, err
	}
	response := make([]dto.UserResponse, 0, len(students))
	for _, student := range students {
		response = append(response, dto.NewUserResponse(student))
	}
	return response, nil
}
