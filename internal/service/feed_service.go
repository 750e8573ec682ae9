package service

import (
	"context"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// FeedService serves health announcements.
type FeedService struct {
	feeds repository.FeedRepository
}

// NewFeedService builds the service.
func NewFeedService(feeds repository.FeedRepository) *FeedService {
	return &FeedService{feeds: feeds}
}

// List returns every feed, newest first.
func (s *FeedService) List(ctx context.Context) ([]domain.Feed, error) {
	feeds, err := s.feeds.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if feeds == nil {
		feeds = []domain.Feed{}
	}
	return feeds, nil
}
