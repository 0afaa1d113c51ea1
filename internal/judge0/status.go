package judge0

// Engine status ids
const (
	StatusInQueue             = 1
	StatusProcessing          = 2
	StatusAccepted            = 3
	StatusWrongAnswer         = 4
	StatusTimeLimitExceeded   = 5
	StatusCompilationError    = 6
	StatusRuntimeErrorSIGSEGV = 7
	StatusRuntimeErrorSIGXFSZ = 8
	StatusRuntimeErrorSIGFPE  = 9
	StatusRuntimeErrorSIGABRT = 10
	StatusRuntimeErrorNZEC    = 11
	StatusRuntimeErrorOther   = 12
	StatusInternalError       = 13
	StatusExecFormatError     = 14
)

// The engine is done with the submission
func IsTerminal(statusID int) bool {
	return statusID >= StatusAccepted && statusID <= StatusExecFormatError
}

func IsInProgress(statusID int) bool {
	return statusID == StatusInQueue || statusID == StatusProcessing
}

func IsCompileError(statusID int) bool {
	return statusID == StatusCompilationError
}

// Signals and non zero exits
func IsRuntimeError(statusID int) bool {
	return statusID >= StatusRuntimeErrorSIGSEGV && statusID <= StatusRuntimeErrorOther
}

func IsTimeLimitExceeded(statusID int) bool {
	return statusID == StatusTimeLimitExceeded
}

func IsAccepted(statusID int) bool {
	return statusID == StatusAccepted
}
