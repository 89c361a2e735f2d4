package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/event"
	"github.com/utafrali/farmmarket/internal/repository"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
)

const (
	// MaxCommentLength bounds review and reply text, in characters.
	MaxCommentLength = 2000
	// defaultProfileConcurrency bounds parallel profile lookups per thread.
	defaultProfileConcurrency = 8
)

// CreateReviewInput holds the parameters for posting a review or reply.
type CreateReviewInput struct {
	ParentID *string
	Rating   int
	Comment  string
}

// ReviewService builds, caches and extends product review threads.
type ReviewService struct {
	reviews     repository.ReviewRepository
	profiles    repository.ProfileRepository
	products    repository.ProductRepository
	cache       repository.ThreadCache
	producer    *event.Producer
	logger      *slog.Logger
	concurrency int
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	profiles repository.ProfileRepository,
	products repository.ProductRepository,
	cache repository.ThreadCache,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:     reviews,
		profiles:    profiles,
		products:    products,
		cache:       cache,
		producer:    producer,
		logger:      logger,
		concurrency: defaultProfileConcurrency,
	}
}

// GetThread returns the review tree of a product, from cache when present.
func (s *ReviewService) GetThread(ctx context.Context, productID string) ([]*domain.ReviewNode, error) {
	tree, ok, err := s.cache.Get(ctx, productID)
	if err != nil {
		s.logger.WarnContext(ctx, "review thread cache read failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	} else if ok {
		return tree, nil
	}
	return s.Refresh(ctx, productID)
}

// Refresh rebuilds the tree from the review store and replaces the cached
// copy with it. The cache is never merged.
func (s *ReviewService) Refresh(ctx context.Context, productID string) ([]*domain.ReviewNode, error) {
	records, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if err := s.attachAuthors(ctx, records); err != nil {
		return nil, err
	}

	tree := domain.BuildTree(records)
	if err := s.cache.Replace(ctx, productID, tree); err != nil {
		s.logger.WarnContext(ctx, "review thread cache write failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
	return tree, nil
}

// attachAuthors looks up each distinct author once, concurrently.
// Missing profiles leave Author nil.
func (s *ReviewService) attachAuthors(ctx context.Context, records []domain.ReviewRecord) error {
	userIDs := make([]string, 0)
	index := make(map[string]int)
	for _, r := range records {
		if _, ok := index[r.UserID]; !ok {
			index[r.UserID] = len(userIDs)
			userIDs = append(userIDs, r.UserID)
		}
	}

	authors := make([]*domain.Author, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, uid := range userIDs {
		g.Go(func() error {
			a, err := s.profiles.GetAuthor(gctx, uid)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("fetch profile %s: %w", uid, err)
			}
			authors[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range records {
		records[i].Author = authors[index[records[i].UserID]]
	}
	return nil
}

// CreateReview stores a review or reply, then updates the cached thread in
// two independent steps: the new node is inserted into the cached tree
// right away, then the whole thread is re-read and the cache replaced.
// A failed refresh is logged; the created review is still returned.
func (s *ReviewService) CreateReview(ctx context.Context, id domain.Identity, productID string, input CreateReviewInput) (*domain.ReviewNode, error) {
	if !id.IsAuthenticated() {
		return nil, apperrors.MustAuthenticate("write a review")
	}

	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		return nil, apperrors.InvalidInput("comment is required")
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("comment must not exceed %d characters", MaxCommentLength))
	}

	rating := input.Rating
	if input.ParentID != nil {
		rating = domain.ReplyRating
	} else if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	if input.ParentID != nil {
		parent, err := s.reviews.GetByID(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.InvalidInput("parent review does not exist")
			}
			return nil, fmt.Errorf("get parent review: %w", err)
		}
		if parent.ProductID != productID {
			return nil, apperrors.InvalidInput("parent review belongs to another product")
		}
	}

	record := domain.ReviewRecord{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    id.UserID,
		ParentID:  input.ParentID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.reviews.Create(ctx, &record); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	author, err := s.profiles.GetAuthor(ctx, id.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "author profile unavailable",
			slog.String("user_id", id.UserID),
			slog.String("error", err.Error()),
		)
		author = &domain.Author{UserID: id.UserID, Role: id.Role}
	}
	record.Author = author
	node := domain.NewReviewNode(record)

	s.applyOptimistic(ctx, productID, node)

	if _, err := s.Refresh(ctx, productID); err != nil {
		s.logger.WarnContext(ctx, "review thread refresh failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishReviewCreated(ctx, &record); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", record.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", record.ID),
		slog.String("product_id", productID),
		slog.Bool("reply", record.IsReply()),
	)
	return node, nil
}

// applyOptimistic inserts node into the cached tree, if one is cached.
func (s *ReviewService) applyOptimistic(ctx context.Context, productID string, node *domain.ReviewNode) {
	tree, ok, err := s.cache.Get(ctx, productID)
	if err != nil || !ok {
		return
	}
	if err := s.cache.Replace(ctx, productID, domain.InsertNode(tree, node)); err != nil {
		s.logger.WarnContext(ctx, "optimistic thread update failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}
