package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docassist/internal/service"
)

type FeedbackPruneJob struct {
	feedback *service.FeedbackService
	keep     time.Duration
}

func NewFeedbackPruneJob(feedback *service.FeedbackService, keep time.Duration) *FeedbackPruneJob {
	return &FeedbackPruneJob{feedback: feedback, keep: keep}
}

func (j *FeedbackPruneJob) Name() string {
	return "feedback_prune"
}

func (j *FeedbackPruneJob) Run(ctx context.Context) error {
	if j.feedback == nil || j.keep <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-j.keep).UnixMilli()
	removed := j.feedback.PruneBefore(cutoff)
	if removed > 0 {
		logutil.GetLogger(ctx).Info("feedback pruned", zap.Int("removed", removed))
	}
	return nil
}
