package replay

import "errors"

var (
	// ErrNotFound is returned when a clip, category, or highlight is no longer present.
	ErrNotFound = errors.New("not found")

	// ErrInvalidIndex is returned for an out-of-range queue or library index.
	ErrInvalidIndex = errors.New("index out of range")

	// ErrDuplicateName is returned when a category create or rename collides.
	ErrDuplicateName = errors.New("name already exists")

	// ErrToolFailure wraps a probe or concat subprocess that failed or timed out.
	ErrToolFailure = errors.New("external tool failed")

	// ErrPersistence is returned when the metadata document cannot be read or written.
	ErrPersistence = errors.New("persistence failed")

	// ErrQueueEmpty is returned by Advance on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrAlreadyQueued is returned when appending a clip that is already queued.
	ErrAlreadyQueued = errors.New("already in queue")

	// ErrNoInput is returned when highlight assembly resolves no source clips.
	ErrNoInput = errors.New("no clips to assemble")

	// ErrInvalidArgument is returned for malformed or out-of-domain request values.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Wire names of the error taxonomy.
const (
	KindNotFound      = "NotFound"
	KindInvalidIndex  = "InvalidIndex"
	KindDuplicateName = "DuplicateName"
	KindToolFailure   = "ToolFailure"
	KindPersistence   = "PersistenceFailure"
	KindQueueEmpty    = "QueueEmpty"
	KindAlreadyQueued = "AlreadyQueued"
	KindNoInput       = "NoInput"
	KindInvalidArg    = "InvalidArgument"
	KindInternal      = "Internal"
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidIndex, KindInvalidIndex},
	{ErrDuplicateName, KindDuplicateName},
	{ErrToolFailure, KindToolFailure},
	{ErrPersistence, KindPersistence},
	{ErrQueueEmpty, KindQueueEmpty},
	{ErrAlreadyQueued, KindAlreadyQueued},
	{ErrNoInput, KindNoInput},
	{ErrInvalidArgument, KindInvalidArg},
}

// ErrorKind maps err onto the wire taxonomy. Unknown errors are "Internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
