package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docassist/internal/model"
	appErr "github.com/xxxsen/docassist/internal/pkg/errors"
)

const defaultFeedbackCap = 10000

// FeedbackService keeps answer votes in memory only. The corpus and answers
// live in external services, so losing votes on restart is acceptable; a
// scheduled prune keeps the buffer from growing over long uptimes.
type FeedbackService struct {
	mu    sync.Mutex
	items []model.Feedback
	cap   int
}

func NewFeedbackService(capacity int) *FeedbackService {
	if capacity <= 0 {
		capacity = defaultFeedbackCap
	}
	return &FeedbackService{cap: capacity}
}

func (s *FeedbackService) Save(ctx context.Context, fb model.Feedback) error {
	fb.AnswerID = strings.TrimSpace(fb.AnswerID)
	if fb.AnswerID == "" {
		return fmt.Errorf("%w: answer_id is required", appErr.ErrInvalid)
	}
	if fb.Vote != model.VoteUp && fb.Vote != model.VoteDown {
		return fmt.Errorf("%w: vote must be up or down", appErr.ErrInvalid)
	}
	fb.Ctime = time.Now().UnixMilli()

	s.mu.Lock()
	s.items = append(s.items, fb)
	if len(s.items) > s.cap {
		s.items = s.items[len(s.items)-s.cap:]
	}
	total := len(s.items)
	s.mu.Unlock()

	logutil.GetLogger(ctx).Info("feedback saved",
		zap.String("answer_id", fb.AnswerID),
		zap.String("vote", fb.Vote),
		zap.Int("total", total),
	)
	return nil
}

func (s *FeedbackService) List() []model.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Feedback, len(s.items))
	copy(out, s.items)
	return out
}

// PruneBefore drops entries older than cutoff (unix millis) and reports how
// many were removed.
func (s *FeedbackService) PruneBefore(cutoff int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	for _, item := range s.items {
		if item.Ctime >= cutoff {
			kept = append(kept, item)
		}
	}
	removed := len(s.items) - len(kept)
	s.items = kept
	return removed
}
