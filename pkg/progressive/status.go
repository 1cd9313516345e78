package progressive

// Status is the position of a Creator in its state machine.
type Status uint8

const (
	NotStarted Status = iota
	Started
	Scalar
	Vector
	VectorEnd
	MatrixRow
	MatrixRowEnd
	SparseMatrixRow
	SparseMatrixRowEnd
	FinishedS
	FinishedV
	FinishedM
	FinishedSM
	Failed
)

var statusNames = [...]string{
	NotStarted:         "notStarted",
	Started:            "started",
	Scalar:             "scalar",
	Vector:             "vector",
	VectorEnd:          "vectorEnd",
	MatrixRow:          "matrixRow",
	MatrixRowEnd:       "matrixRowEnd",
	SparseMatrixRow:    "sparseMatrixRow",
	SparseMatrixRowEnd: "sparseMatrixRE",
	FinishedS:          "finishedS",
	FinishedV:          "finishedV",
	FinishedM:          "finishedM",
	FinishedSM:         "finishedSM",
	Failed:             "error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Finished reports the four terminal states GetReference accepts.
func (s Status) Finished() bool {
	return s >= FinishedS && s <= FinishedSM
}

// jagged reports the states in which rows have individual lengths.
func (s Status) jagged() bool {
	return s == SparseMatrixRow || s == SparseMatrixRowEnd || s == FinishedSM
}
