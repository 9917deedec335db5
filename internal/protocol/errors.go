package protocol

// ErrorKind partitions the request-scoped failures a client can trigger.
// Every kind is advisory: it is reported only to the initiating connection
// and never affects the room or other players.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"   // missing/empty required field
	KindNotFound     ErrorKind = "not_found"    // unknown room id
	KindCapacity     ErrorKind = "capacity"     // room full
	KindAuth         ErrorKind = "auth"         // password mismatch
	KindConflict     ErrorKind = "conflict"     // role slot or queue position taken
	KindForbidden    ErrorKind = "forbidden"    // caller lacks role/host privilege
	KindPrecondition ErrorKind = "precondition" // state not ready for the action
)

// GameError is the single error type crossing the engine boundary. The
// Message field is the stable human-readable string clients branch on.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string { return e.Message }

func Validation(msg string) error   { return &GameError{Kind: KindValidation, Message: msg} }
func NotFound(msg string) error     { return &GameError{Kind: KindNotFound, Message: msg} }
func Capacity(msg string) error     { return &GameError{Kind: KindCapacity, Message: msg} }
func Auth(msg string) error         { return &GameError{Kind: KindAuth, Message: msg} }
func Conflict(msg string) error     { return &GameError{Kind: KindConflict, Message: msg} }
func Forbidden(msg string) error    { return &GameError{Kind: KindForbidden, Message: msg} }
func Precondition(msg string) error { return &GameError{Kind: KindPrecondition, Message: msg} }
