package gate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/gate"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/testdb"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue/mock"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const batchSize = 10

type GateSuite struct {
	suite.Suite
	pg       *testdb.DB
	db       *gorm.DB
	question *models.Question
	queue    *mock.MockQueuer
	gate     *gate.Gate
	userID   string
}

func TestGate(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupSuite() {
	pg, err := testdb.Start(context.Background())
	s.Require().NoError(err, "failed to start postgres container")
	s.pg = pg
	s.db = pg.DB

	s.question = &models.Question{
		Title:              "Two Sum",
		Difficulty:         types.DifficultyMedium,
		Tags:               []string{"arrays", "hashing"},
		LanguageIDsAllowed: []int{71},
		DefaultLanguageID:  71,
		TimeLimitSeconds:   2,
		MemoryLimitMB:      256,
	}
	s.Require().NoError(s.db.Create(s.question).Error)
}

func (s *GateSuite) TearDownSuite() {
	s.NoError(s.pg.Terminate(), "failed to terminate container")
}

func (s *GateSuite) SetupTest() {
	s.queue = mock.NewMockQueuer(gomock.NewController(s.T()))
	s.gate = gate.New(s.db, s.queue, batchSize, 3)
	// every test gets a fresh user so gates never see each other's submissions
	s.userID = uuid.NewString()
}

// creates n terminal submissions, the last one is the newest
func (s *GateSuite) seed(n int, status types.SubmissionStatus) []models.Submission {
	base := time.Now().Add(-time.Hour)
	out := make([]models.Submission, 0, n)
	for i := range n {
		sub := models.Submission{
			QuestionID:  s.question.ID,
			UserID:      s.userID,
			LanguageID:  71,
			SourceCode:  "print(1)",
			Status:      status,
			PassedCount: models.NewNullFromData(1),
			TotalCount:  models.NewNullFromData(2),
			FirstFailure: &types.FirstFailure{
				Stdin:        ptr("secret"),
				ErrorMessage: ptr("Wrong answer"),
			},
			Model: models.Model{CreatedAt: base.Add(time.Duration(i) * time.Second)},
		}
		s.Require().NoError(s.db.Create(&sub).Error)
		out = append(out, sub)
	}
	return out
}

func (s *GateSuite) claim(submissions ...models.Submission) *models.AnalysisExecution {
	execution := &models.AnalysisExecution{UserID: s.userID, Status: types.AnalysisStatusPending}
	s.Require().NoError(s.db.Omit("Submissions").Create(execution).Error)
	for _, sub := range submissions {
		s.Require().NoError(s.db.Create(&models.AnalysisExecutionSubmission{
			SubmissionID: sub.ID,
			ExecutionID:  execution.ID,
		}).Error)
	}
	return execution
}

func (s *GateSuite) executions() []models.AnalysisExecution {
	var executions []models.AnalysisExecution
	s.Require().NoError(s.db.Preload("Submissions").Where("user_id = ?", s.userID).Find(&executions).Error)
	return executions
}

func ptr[T any](v T) *T {
	return &v
}

func (s *GateSuite) TestBelowThreshold() {
	s.seed(batchSize-1, types.SubmissionStatusPassed)
	s.seed(3, types.SubmissionStatusQueued)

	execution, err := s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Nil(execution)
	s.Empty(s.executions())
}

func (s *GateSuite) TestReachingThresholdClaimsOnce() {
	s.seed(batchSize-1, types.SubmissionStatusFailed)

	execution, err := s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().Nil(execution)

	s.seed(1, types.SubmissionStatusPassed)

	var job types.AnalysisJob
	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, message any) error {
		job = message.(types.AnalysisJob)
		return nil
	})

	execution, err = s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().NotNil(execution)
	s.Len(execution.Submissions, batchSize)

	executions := s.executions()
	s.Require().Len(executions, 1)
	s.Equal(types.AnalysisStatusPending, executions[0].Status)

	s.Equal(execution.ID.String(), job.ExecutionID)
	s.Require().Len(job.Submissions, batchSize)
	s.Equal("Two Sum", job.Submissions[0].QuestionTitle)
	s.Equal([]string{"arrays", "hashing"}, job.Submissions[0].QuestionTags)
	s.Require().NotNil(job.Submissions[0].FirstFailure)
	s.Equal("Wrong answer", *job.Submissions[0].FirstFailure.ErrorMessage)

	// nothing new accumulated, a second evaluation must not enqueue again
	execution, err = s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Nil(execution)
}

func (s *GateSuite) TestClaimedSubmissionsDoNotStarveNewOnes() {
	seeded := s.seed(12, types.SubmissionStatusPassed)
	// the third newest was analyzed by an earlier batch
	alreadyClaimed := seeded[9]
	s.claim(alreadyClaimed)

	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	execution, err := s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().NotNil(execution)

	claimed := execution.SubmissionIDs()
	s.Len(claimed, batchSize)
	s.NotContains(claimed, alreadyClaimed.ID)
	s.NotContains(claimed, seeded[0].ID, "the oldest submission is left for a later batch")
	for _, sub := range append(seeded[1:9], seeded[10:]...) {
		s.Contains(claimed, sub.ID)
	}
}

func (s *GateSuite) TestEnqueueFailureReleasesClaim() {
	s.seed(batchSize, types.SubmissionStatusError)

	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(errors.New("queue unavailable"))

	execution, err := s.gate.Evaluate(context.Background(), s.userID)
	s.Require().Error(err)
	s.Nil(execution)
	s.Empty(s.executions())

	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	execution, err = s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().NotNil(execution)
	s.Len(execution.Submissions, batchSize)
}

func (s *GateSuite) TestConcurrentEvaluationsClaimOnce() {
	s.seed(batchSize, types.SubmissionStatusPassed)

	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.gate.Evaluate(context.Background(), s.userID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Len(s.executions(), 1)
}

func (s *GateSuite) TestCompleteByID() {
	submissions := s.seed(2, types.SubmissionStatusPassed)
	execution := s.claim(submissions...)

	id := execution.ID.String()
	remark, completed, err := s.gate.Complete(context.Background(), types.AnalysisRemark{
		ExecutionID:   &id,
		UserID:        s.userID,
		Remark:        "Watch off by one errors",
		SubmissionIDs: types.SubmissionIDs{submissions[0].ID.String(), submissions[1].ID.String()},
	})
	s.Require().NoError(err)
	s.Require().NotNil(completed)
	s.Equal(execution.ID, completed.ID)
	s.Require().NotNil(remark.ExecutionID)
	s.Equal(execution.ID, *remark.ExecutionID)

	executions := s.executions()
	s.Require().Len(executions, 1)
	s.Equal(types.AnalysisStatusCompleted, executions[0].Status)
	s.True(executions[0].CompletedAt.Valid)
}

func (s *GateSuite) TestCompleteBySubmissionSet() {
	submissions := s.seed(3, types.SubmissionStatusPassed)
	other := s.claim(submissions[0])
	execution := s.claim(submissions[1], submissions[2])

	// order and letter case of the ids must not matter
	_, completed, err := s.gate.Complete(context.Background(), types.AnalysisRemark{
		UserID: s.userID,
		Remark: "Good progress",
		SubmissionIDs: types.SubmissionIDs{
			submissions[2].ID.String(),
			strings.ToUpper(submissions[1].ID.String()),
		},
	})
	s.Require().NoError(err)
	s.Require().NotNil(completed)
	s.Equal(execution.ID, completed.ID)

	var reloaded models.AnalysisExecution
	s.Require().NoError(s.db.First(&reloaded, "id = ?", other.ID).Error)
	s.Equal(types.AnalysisStatusPending, reloaded.Status)
}

func (s *GateSuite) TestCompleteWithoutMatchStillSavesRemark() {
	submissions := s.seed(1, types.SubmissionStatusPassed)

	remark, completed, err := s.gate.Complete(context.Background(), types.AnalysisRemark{
		UserID:        s.userID,
		Remark:        "No batch for this one",
		SubmissionIDs: types.SubmissionIDs{submissions[0].ID.String()},
	})
	s.Require().NoError(err)
	s.Nil(completed)
	s.Nil(remark.ExecutionID)

	exists, err := models.Exists[models.UserRemark](context.Background(), s.db, "id = ?", remark.ID)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *GateSuite) TestCompleteUnknownExecution() {
	id := uuid.NewString()
	_, _, err := s.gate.Complete(context.Background(), types.AnalysisRemark{
		ExecutionID:   &id,
		UserID:        s.userID,
		Remark:        "Lost",
		SubmissionIDs: types.SubmissionIDs{uuid.NewString()},
	})
	s.ErrorIs(err, gate.ErrExecutionNotFound)
}

func (s *GateSuite) TestJobEnqueuedAfterClaimCommits() {
	s.seed(batchSize, types.SubmissionStatusPassed)

	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, message any) error {
		job := message.(types.AnalysisJob)

		// read through the pool, outside the claiming transaction
		var execution models.AnalysisExecution
		err := s.db.Preload("Submissions").Take(&execution, "id = ?", job.ExecutionID).Error
		s.Require().NoError(err, "claim must be committed before the job is published")
		s.Len(execution.Submissions, batchSize)
		return nil
	})

	execution, err := s.gate.Evaluate(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().NotNil(execution)
}

func (s *GateSuite) TestFailedClaimDoesNotEnqueue() {
	s.seed(batchSize, types.SubmissionStatusFailed)

	const callback = "test:fail_claim"
	s.Require().NoError(s.db.Callback().Create().Before("gorm:create").Register(callback, func(db *gorm.DB) {
		if db.Statement.Table == "analysis_execution_submission" {
			_ = db.AddError(errors.New("connection reset"))
		}
	}))
	defer func() {
		s.NoError(s.db.Callback().Create().Remove(callback))
	}()

	// the mock fails the test on any Enqueue call
	execution, err := s.gate.Evaluate(context.Background(), s.userID)
	s.Require().Error(err)
	s.Nil(execution)
	s.Empty(s.executions(), "the execution row rolls back with the claim")
}
