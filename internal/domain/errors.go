package domain

import "errors"

// Error taxonomy for a forecast-key job. Resolution, merge and ordering
// failures abort the current job only; sibling jobs in a batch keep running.
var (
	// ErrNotFound indicates a mandatory file family is absent.
	ErrNotFound = errors.New("archive file not found")

	// ErrAmbiguousSource indicates zero or more than one file matched a
	// selector where exactly one was expected.
	ErrAmbiguousSource = errors.New("ambiguous archive source")

	// ErrDecode indicates the decoder backend failed to produce a slice.
	ErrDecode = errors.New("decode failed")

	// ErrEmptyExtraction indicates a job produced no slices at all.
	ErrEmptyExtraction = errors.New("empty extraction")

	// ErrMergeConflict indicates two variables claimed the same canonical
	// name with incompatible shapes or coordinates.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrTimeOrdering indicates a non-monotonic time axis after sorting,
	// which points at an upstream selector or pairing bug.
	ErrTimeOrdering = errors.New("time axis not monotonic")
)
