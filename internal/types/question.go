package types

type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityHidden Visibility = "hidden"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type (
	// Normalization applied before comparing program output with the expected output
	OutputComparison struct {
		TrimOutputs         bool `json:"trimOutputs"`
		NormalizeWhitespace bool `json:"normalizeWhitespace"`
		CaseSensitive       bool `json:"caseSensitive"`
	}

	CreateTestCase struct {
		Name           *string    `json:"name,omitempty"   validate:"omitempty,max=256"`
		Visibility     Visibility `json:"visibility"       validate:"required,oneof=public hidden"`
		Stdin          string     `json:"stdin"`
		ExpectedStdout string     `json:"expectedStdout"`
	}

	CreateQuestion struct {
		Title              string           `json:"title"              validate:"required,max=512"`
		Difficulty         Difficulty       `json:"difficulty"         validate:"required,oneof=easy medium hard"`
		Tags               []string         `json:"tags"               validate:"dive,required"`
		LanguageIDsAllowed []int            `json:"languageIdsAllowed" validate:"required,min=1,dive,gt=0"`
		DefaultLanguageID  int              `json:"defaultLanguageId"  validate:"required,gt=0"`
		TimeLimitSeconds   float64          `json:"timeLimitSeconds"   validate:"required,gt=0"`
		MemoryLimitMB      int              `json:"memoryLimitMb"      validate:"required,gt=0"`
		OutputComparison   OutputComparison `json:"outputComparison"`
		// Executed in the order given
		TestCases []CreateTestCase `json:"testCases" validate:"required,min=1,dive"`
	}

	Question struct {
		ID                 string           `json:"id"`
		Title              string           `json:"title"`
		Difficulty         Difficulty       `json:"difficulty"`
		Tags               []string         `json:"tags"`
		LanguageIDsAllowed []int            `json:"languageIdsAllowed"`
		DefaultLanguageID  int              `json:"defaultLanguageId"`
		TimeLimitSeconds   float64          `json:"timeLimitSeconds"`
		MemoryLimitMB      int              `json:"memoryLimitMb"`
		OutputComparison   OutputComparison `json:"outputComparison"`
		TestCaseCount      int              `json:"testCaseCount"`
	}
)
