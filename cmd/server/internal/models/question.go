package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

type (
	Question struct {
		Title              string
		Difficulty         types.Difficulty
		Tags               []string               `gorm:"type:jsonb;serializer:json"`
		LanguageIDsAllowed []int                  `gorm:"column:language_ids_allowed;type:jsonb;serializer:json"`
		OutputComparison   types.OutputComparison `gorm:"type:jsonb;serializer:json"`
		TestCases          []TestCase             `gorm:"foreignKey:QuestionID"`
		Model
		TimeLimitSeconds  float64
		DefaultLanguageID int `gorm:"column:default_language_id"`
		MemoryLimitMB     int `gorm:"column:memory_limit_mb"`
	}

	TestCase struct {
		Visibility     types.Visibility
		Stdin          string
		ExpectedStdout string
		Name           datatypes.Null[string]
		Model
		QuestionID uuid.UUID
		Order      int `gorm:"column:order"`
	}
)

func (Question) TableName() string {
	return "coding_question"
}

func (q Question) GetID() uuid.UUID {
	return q.ID
}

func (q Question) AllowsLanguage(languageID int) bool {
	for _, id := range q.LanguageIDsAllowed {
		if id == languageID {
			return true
		}
	}
	return false
}

func (q Question) JudgingSettings() types.JudgingSettings {
	return types.JudgingSettings{
		ID:               q.ID.String(),
		TimeLimitSeconds: q.TimeLimitSeconds,
		MemoryLimitMB:    q.MemoryLimitMB,
		OutputComparison: q.OutputComparison,
	}
}

func (q Question) ToType(testCaseCount int) types.Question {
	return types.Question{
		ID:                 q.ID.String(),
		Title:              q.Title,
		Difficulty:         q.Difficulty,
		Tags:               q.Tags,
		LanguageIDsAllowed: q.LanguageIDsAllowed,
		DefaultLanguageID:  q.DefaultLanguageID,
		TimeLimitSeconds:   q.TimeLimitSeconds,
		MemoryLimitMB:      q.MemoryLimitMB,
		OutputComparison:   q.OutputComparison,
		TestCaseCount:      testCaseCount,
	}
}

func (TestCase) TableName() string {
	return "coding_test_case"
}

func (tc TestCase) GetID() uuid.UUID {
	return tc.ID
}

func (tc TestCase) ToType() types.TestCase {
	return types.TestCase{
		ID:             tc.ID.String(),
		Name:           PtrFromNull(tc.Name),
		Visibility:     tc.Visibility,
		Stdin:          tc.Stdin,
		ExpectedStdout: tc.ExpectedStdout,
		Order:          tc.Order,
	}
}
